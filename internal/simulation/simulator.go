// Package simulation drives synthetic buses along a shift's route through
// the regular GPS ingestion path.
package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/metrics"
	"ebus_manager/internal/models"
	"ebus_manager/internal/tracking"
)

const (
	subSteps    = 10
	speedKmh    = 40
	accuracyM   = 5
	defaultStep = time.Second
)

// FallbackPath is walked when the shift's route has fewer than two stops
// (Haldwani to GEHU).
var FallbackPath = []tracking.Point{
	{Lat: 29.2183, Lon: 79.5130},
	{Lat: 29.2250, Lon: 79.5160},
	{Lat: 29.2320, Lon: 79.5190},
	{Lat: 29.2400, Lon: 79.5220},
	{Lat: 29.2480, Lon: 79.5250},
	{Lat: 29.2560, Lon: 79.5280},
	{Lat: 29.2640, Lon: 79.5310},
	{Lat: 29.2720, Lon: 79.5340},
	{Lat: 29.2800, Lon: 79.5370},
	{Lat: 29.2880, Lon: 79.5400},
	{Lat: 29.2960, Lon: 79.5430},
}

type Repository interface {
	FindShift(ctx context.Context, id uint) (*models.Shift, error)
	RouteStops(ctx context.Context, routeID uint) ([]models.RouteStop, error)
}

// StatusChanger moves a shift through its lifecycle.
type StatusChanger interface {
	UpdateStatus(ctx context.Context, id uint, to string) (*models.Shift, error)
}

type Ingester interface {
	Ingest(ctx context.Context, r tracking.PositionReport) error
}

type Simulator struct {
	repo     Repository
	status   StatusChanger
	ingest   Ingester
	registry *Registry
	interval time.Duration
	metrics  *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSimulator(repo Repository, status StatusChanger, ingest Ingester, registry *Registry, interval time.Duration, m *metrics.Collector) *Simulator {
	if registry == nil {
		registry = NewRegistry()
	}
	if interval < 0 {
		interval = defaultStep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		repo:     repo,
		status:   status,
		ingest:   ingest,
		registry: registry,
		interval: interval,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start activates the shift and begins walking its route in the background.
func (s *Simulator) Start(ctx context.Context, shiftID uint, multiplier float64) error {
	if multiplier < 0 {
		return apperr.Validation("speed_multiplier must not be negative")
	}
	if multiplier == 0 {
		multiplier = 1
	}
	if s.ctx.Err() != nil {
		return apperr.Internal("simulator is shut down", s.ctx.Err())
	}

	r, ok := s.registry.begin(shiftID)
	if !ok {
		return apperr.Conflict(apperr.CodeSimulationRunning, "simulation already running for shift %d", shiftID)
	}
	shift, path, err := s.prepare(ctx, shiftID)
	if err != nil {
		s.registry.finish(shiftID, r)
		return err
	}

	delay := time.Duration(float64(s.interval) / multiplier)
	s.metrics.SimulationsRunning(s.registry.Len())
	logrus.WithFields(logrus.Fields{
		"shift_id":   shiftID,
		"bus_id":     shift.BusID,
		"waypoints":  len(path),
		"multiplier": multiplier,
	}).Info("Simulation started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.walk(s.ctx, r, shift, path, delay)
		s.metrics.SimulationsRunning(s.registry.Len())
	}()
	return nil
}

func (s *Simulator) prepare(ctx context.Context, shiftID uint) (*models.Shift, []tracking.Point, error) {
	shift, err := s.repo.FindShift(ctx, shiftID)
	if err != nil {
		return nil, nil, err
	}
	switch shift.Status {
	case models.ShiftScheduled, models.ShiftActive:
	default:
		return nil, nil, apperr.InvalidTransition(shift.Status, models.ShiftActive)
	}
	stops, err := s.repo.RouteStops(ctx, shift.RouteID)
	if err != nil {
		return nil, nil, err
	}
	if shift.Status == models.ShiftScheduled {
		if _, err := s.status.UpdateStatus(ctx, shiftID, models.ShiftActive); err != nil {
			return nil, nil, err
		}
	}
	return shift, PathFor(stops), nil
}

// PathFor returns the stop coordinates in order, or FallbackPath when
// there are fewer than two stops.
func PathFor(stops []models.RouteStop) []tracking.Point {
	if len(stops) < 2 {
		return FallbackPath
	}
	path := make([]tracking.Point, len(stops))
	for i, st := range stops {
		path[i] = tracking.Point{Lat: st.Latitude, Lon: st.Longitude}
	}
	return path
}

func (s *Simulator) walk(ctx context.Context, r *run, shift *models.Shift, path []tracking.Point, delay time.Duration) {
	shiftID := shift.ID
	log := logrus.WithFields(logrus.Fields{"shift_id": shiftID, "bus_id": shift.BusID})
	defer s.registry.finish(shiftID, r)

	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		heading := tracking.Bearing(a.Lat, a.Lon, b.Lat, b.Lon)
		first := 1
		if i == 0 {
			first = 0
		}
		for j := first; j <= subSteps; j++ {
			if ctx.Err() != nil || r.cancelled() {
				log.Info("Simulation stopped")
				return
			}
			p := tracking.Interpolate(a, b, float64(j)/subSteps)
			err := s.ingest.Ingest(ctx, tracking.PositionReport{
				BusID:     shift.BusID,
				ShiftID:   &shiftID,
				Latitude:  p.Lat,
				Longitude: p.Lon,
				Speed:     speedKmh,
				Heading:   heading,
				Accuracy:  accuracyM,
			})
			if err != nil {
				log.WithError(err).Warn("Simulated sample rejected")
			}
			if !pause(ctx, r, delay) {
				log.Info("Simulation stopped")
				return
			}
		}
	}

	if _, err := s.status.UpdateStatus(ctx, shiftID, models.ShiftCompleted); err != nil {
		log.WithError(err).Warn("Simulation finished but shift was not completed")
		return
	}
	log.Info("Simulation finished")
}

// pause waits for d and reports false if the run was cancelled meanwhile.
func pause(ctx context.Context, r *run, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil && !r.cancelled()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stopped:
		return false
	case <-t.C:
		return true
	}
}

// Stop cancels the shift's walk. The shift keeps its current status.
func (s *Simulator) Stop(shiftID uint) bool {
	ok := s.registry.Stop(shiftID)
	if ok {
		s.metrics.SimulationsRunning(s.registry.Len())
	}
	return ok
}

func (s *Simulator) Running(shiftID uint) bool { return s.registry.IsRunning(shiftID) }

func (s *Simulator) RunningShifts() []uint { return s.registry.IDs() }

// Close cancels every walk and waits for them to return.
func (s *Simulator) Close() {
	s.cancel()
	s.wg.Wait()
}
