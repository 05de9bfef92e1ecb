package realtime

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/metrics"
)

// Publisher writes typed projections to a Broadcaster. Failures are logged
// and counted but never returned: the relational store stays the source of
// truth and a failed push must not undo a committed write.
type Publisher struct {
	sink    Broadcaster
	metrics *metrics.Collector
	now     func() time.Time
}

func NewPublisher(sink Broadcaster, m *metrics.Collector) *Publisher {
	return &Publisher{sink: sink, metrics: m, now: time.Now}
}

func (p *Publisher) BusLocation(ctx context.Context, busID uint, loc Location) {
	if loc.Timestamp == 0 {
		loc.Timestamp = p.now().UnixMilli()
	}
	p.set(ctx, LocationKey(busID), loc)
}

func (p *Publisher) BusStatus(ctx context.Context, busID uint, st BusStatus) {
	st.UpdatedAt = p.now().UnixMilli()
	p.set(ctx, StatusKey(busID), st)
}

func (p *Publisher) Occupancy(ctx context.Context, shiftID uint, o Occupancy) {
	o.UpdatedAt = p.now().UnixMilli()
	p.set(ctx, OccupancyKey(shiftID), o)
}

func (p *Publisher) StopETA(ctx context.Context, shiftID, stopID uint, minutes int) {
	p.set(ctx, StopKey(shiftID, stopID), StopETA{ETA: minutes, UpdatedAt: p.now().UnixMilli()})
}

// RemoveBus drops everything mirrored for a deactivated bus.
func (p *Publisher) RemoveBus(ctx context.Context, busID uint) {
	if err := p.sink.Remove(ctx, BusKey(busID)); err != nil {
		p.metrics.BroadcastFailed()
		logrus.WithError(err).WithField("bus_id", busID).Warn("Realtime: failed to remove bus")
	}
}

func (p *Publisher) set(ctx context.Context, key string, value any) {
	start := time.Now()
	err := p.sink.Set(ctx, key, value)
	p.metrics.BroadcastObserve(time.Since(start).Seconds())
	if err != nil {
		p.metrics.BroadcastFailed()
		logrus.WithError(err).WithField("key", key).Warn("Realtime: broadcast failed")
	}
}
