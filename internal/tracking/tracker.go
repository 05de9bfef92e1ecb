// Package tracking records GPS samples, mirrors them to the realtime layer
// and derives stop ETAs.
package tracking

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/models"
	"ebus_manager/internal/realtime"
	"ebus_manager/internal/store"
)

type Repository interface {
	CreateGPSLog(ctx context.Context, log *models.GPSLog) error
	FindBus(ctx context.Context, id uint) (*models.Bus, error)
	FindBusByDevice(ctx context.Context, deviceID string) (*models.Bus, error)
	RouteStopsForShift(ctx context.Context, shiftID uint) ([]models.RouteStop, error)
	GPSHistory(ctx context.Context, q store.GPSQuery) ([]models.GPSLog, error)
	LatestGPSLog(ctx context.Context, busID uint) (*models.GPSLog, error)
	PurgeGPSLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PositionReport is one GPS sample from a device or the simulator.
type PositionReport struct {
	BusID     uint      `json:"bus_id"`
	ShiftID   *uint     `json:"shift_id,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (r PositionReport) Validate() error {
	switch {
	case r.BusID == 0:
		return apperr.Validation("bus_id is required")
	case r.Latitude < -90 || r.Latitude > 90:
		return apperr.Validation("latitude must be between -90 and 90")
	case r.Longitude < -180 || r.Longitude > 180:
		return apperr.Validation("longitude must be between -180 and 180")
	case r.Speed < 0:
		return apperr.Validation("speed must not be negative")
	case r.Heading < 0 || r.Heading > 360:
		return apperr.Validation("heading must be between 0 and 360")
	case r.Accuracy < 0:
		return apperr.Validation("accuracy must not be negative")
	}
	return nil
}

type StopEstimate struct {
	StopID     uint    `json:"stop_id"`
	StopName   string  `json:"stop_name"`
	StopOrder  int     `json:"stop_order"`
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes int     `json:"eta_minutes"`
}

type Tracker struct {
	repo      Repository
	publisher *realtime.Publisher
	metrics   *metrics.Collector
	speedKmh  float64
	fanout    int
	now       func() time.Time
}

func NewTracker(repo Repository, publisher *realtime.Publisher, m *metrics.Collector, speedKmh float64) *Tracker {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return &Tracker{repo: repo, publisher: publisher, metrics: m, speedKmh: speedKmh, fanout: 4, now: time.Now}
}

// LogPosition validates and stores a device sample, then broadcasts it.
// Only validation and persistence failures reach the caller.
func (t *Tracker) LogPosition(ctx context.Context, r PositionReport) (*models.GPSLog, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	bus, err := t.repo.FindBus(ctx, r.BusID)
	if err != nil {
		return nil, err
	}
	if !bus.IsActive {
		return nil, apperr.Validation("bus %d is inactive", r.BusID)
	}
	return t.record(ctx, r, false)
}

// Ingest is the best-effort path used by the simulator and device feeds:
// a failed insert is logged and the sample is still broadcast.
func (t *Tracker) Ingest(ctx context.Context, r PositionReport) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := t.record(ctx, r, true)
	return err
}

func (t *Tracker) record(ctx context.Context, r PositionReport, bestEffort bool) (*models.GPSLog, error) {
	if r.Timestamp.IsZero() {
		r.Timestamp = t.now()
	}
	log := &models.GPSLog{
		BusID:     r.BusID,
		ShiftID:   r.ShiftID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Speed:     r.Speed,
		Heading:   r.Heading,
		Accuracy:  r.Accuracy,
		Timestamp: r.Timestamp,
	}
	if err := t.repo.CreateGPSLog(ctx, log); err != nil {
		if !bestEffort {
			return nil, err
		}
		logrus.WithError(err).WithField("bus_id", r.BusID).Warn("GPS sample not persisted")
	} else {
		t.metrics.GPSLogged()
	}

	t.publisher.BusLocation(ctx, r.BusID, realtime.Location{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Speed:     r.Speed,
		Heading:   r.Heading,
		Accuracy:  r.Accuracy,
		Timestamp: r.Timestamp.UnixMilli(),
	})

	if r.ShiftID != nil {
		t.pushETAs(ctx, *r.ShiftID, r.Latitude, r.Longitude)
	}
	return log, nil
}

// EstimateArrivals computes the ETA from a position to every stop of the shift's route.
func (t *Tracker) EstimateArrivals(ctx context.Context, shiftID uint, lat, lon float64) ([]StopEstimate, error) {
	stops, err := t.repo.RouteStopsForShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	out := make([]StopEstimate, len(stops))
	for i, st := range stops {
		km := HaversineKm(lat, lon, st.Latitude, st.Longitude)
		out[i] = StopEstimate{
			StopID:     st.ID,
			StopName:   st.StopName,
			StopOrder:  st.StopOrder,
			DistanceKm: km,
			ETAMinutes: ETAMinutes(km, t.speedKmh),
		}
	}
	return out, nil
}

func (t *Tracker) pushETAs(ctx context.Context, shiftID uint, lat, lon float64) {
	estimates, err := t.EstimateArrivals(ctx, shiftID, lat, lon)
	if err != nil {
		logrus.WithError(err).WithField("shift_id", shiftID).Warn("ETA update skipped")
		return
	}
	p := pool.New().WithMaxGoroutines(t.fanout)
	for _, est := range estimates {
		p.Go(func() {
			t.publisher.StopETA(ctx, shiftID, est.StopID, est.ETAMinutes)
			t.metrics.ETAUpdated()
		})
	}
	p.Wait()
}

func (t *Tracker) History(ctx context.Context, q store.GPSQuery) ([]models.GPSLog, error) {
	if q.BusID == 0 {
		return nil, apperr.Validation("bus_id is required")
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, apperr.Validation("to must not be before from")
	}
	return t.repo.GPSHistory(ctx, q)
}

func (t *Tracker) LatestPosition(ctx context.Context, busID uint) (*models.GPSLog, error) {
	return t.repo.LatestGPSLog(ctx, busID)
}
