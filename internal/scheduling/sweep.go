package scheduling

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
)

type SweepResult struct {
	Started   int
	Completed int
}

// Sweeper periodically starts shifts whose window has begun and completes
// active shifts whose window has ended.
type Sweeper struct {
	scheduler *Scheduler
	interval  time.Duration
}

func NewSweeper(s *Scheduler, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{scheduler: s, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	logrus.WithField("interval", w.interval.String()).Info("Shift status sweep started")
	w.sweep(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Shift status sweep stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	res, err := w.SweepOnce(ctx)
	if err != nil {
		logrus.WithError(err).Error("Shift status sweep failed")
		return
	}
	if res.Started > 0 || res.Completed > 0 {
		logrus.WithFields(logrus.Fields{
			"started":   res.Started,
			"completed": res.Completed,
		}).Info("Shift status sweep applied transitions")
	}
}

func (w *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	s := w.scheduler
	now := s.now().In(s.loc)
	clock := now.Hour()*60 + now.Minute()

	var res SweepResult
	shifts, err := s.repo.OpenShiftsOn(ctx, now)
	if err != nil {
		return res, err
	}
	for _, sh := range shifts {
		start, err1 := models.ParseClock(sh.StartTime)
		end, err2 := models.ParseClock(sh.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}

		var to string
		switch {
		case sh.Status == models.ShiftScheduled && start <= clock && clock <= end:
			to = models.ShiftActive
		case sh.Status == models.ShiftActive && end < clock:
			to = models.ShiftCompleted
		default:
			continue
		}

		if _, err := s.UpdateStatus(ctx, sh.ID, to); err != nil {
			entry := logrus.WithError(err).WithFields(logrus.Fields{"shift_id": sh.ID, "to": to})
			if apperr.IsKind(err, apperr.KindInvalidTransition) {
				entry.Debug("Sweep lost a race with a manual status change")
			} else {
				entry.Warn("Sweep transition failed")
			}
			continue
		}
		if to == models.ShiftActive {
			res.Started++
		} else {
			res.Completed++
		}
	}
	return res, nil
}
