package tracking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/metrics"
)

// Retention periodically deletes GPS samples older than the horizon.
type Retention struct {
	repo     Repository
	horizon  time.Duration
	interval time.Duration
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewRetention(repo Repository, horizon, interval time.Duration, m *metrics.Collector) *Retention {
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Retention{repo: repo, horizon: horizon, interval: interval, metrics: m, now: time.Now}
}

func (r *Retention) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.PurgeOnce(ctx); err != nil {
				logrus.WithError(err).Error("GPS retention purge failed")
			}
		}
	}
}

func (r *Retention) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.horizon)
	n, err := r.repo.PurgeGPSLogsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	r.metrics.GPSPurgedAdd(n)
	logrus.WithFields(logrus.Fields{
		"deleted": n,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Purged old GPS logs")
	return n, nil
}
