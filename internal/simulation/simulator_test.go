package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/tracking"
)

type fakeRepo struct {
	mu     sync.Mutex
	shifts map[uint]*models.Shift
	stops  map[uint][]models.RouteStop
}

func (f *fakeRepo) FindShift(_ context.Context, id uint) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) RouteStops(_ context.Context, routeID uint) ([]models.RouteStop, error) {
	return f.stops[routeID], nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uint, to string) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift", id)
	}
	if s.Status == models.ShiftCompleted || s.Status == models.ShiftCancelled {
		return nil, apperr.InvalidTransition(s.Status, to)
	}
	s.Status = to
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) statusOf(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shifts[id].Status
}

type recorder struct {
	mu      sync.Mutex
	reports []tracking.PositionReport
}

func (r *recorder) Ingest(_ context.Context, p tracking.PositionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *recorder) all() []tracking.PositionReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.PositionReport(nil), r.reports...)
}

func newFixture(interval time.Duration) (*Simulator, *fakeRepo, *recorder) {
	stopA := models.RouteStop{RouteID: 1, StopOrder: 1, StopName: "Haldwani", Latitude: 29.2183, Longitude: 79.5130}
	stopB := models.RouteStop{RouteID: 1, StopOrder: 2, StopName: "GEHU", Latitude: 29.2960, Longitude: 79.5430}
	repo := &fakeRepo{
		shifts: map[uint]*models.Shift{},
		stops: map[uint][]models.RouteStop{
			1: {stopA, stopB},
			2: {stopA},
		},
	}
	for id, st := range map[uint]string{
		10: models.ShiftScheduled,
		11: models.ShiftScheduled,
		12: models.ShiftCompleted,
		13: models.ShiftActive,
	} {
		route := uint(1)
		if id == 11 {
			route = 2
		}
		s := &models.Shift{BusID: 5, RouteID: route, Status: st}
		s.ID = id
		repo.shifts[id] = s
	}
	rec := &recorder{}
	return NewSimulator(repo, repo, rec, NewRegistry(), interval, nil), repo, rec
}

func waitFinished(t *testing.T, sim *Simulator, id uint) {
	t.Helper()
	require.Eventually(t, func() bool { return !sim.Running(id) }, 5*time.Second, 5*time.Millisecond)
	sim.wg.Wait()
}

func TestSimulationWalksRouteStops(t *testing.T) {
	sim, repo, rec := newFixture(0)
	defer sim.Close()

	require.NoError(t, sim.Start(context.Background(), 10, 0))
	waitFinished(t, sim, 10)

	reports := rec.all()
	require.Len(t, reports, 11)
	assert.InDelta(t, 29.2183, reports[0].Latitude, 1e-9)
	assert.InDelta(t, 29.2960, reports[10].Latitude, 1e-9)
	assert.InDelta(t, 79.5430, reports[10].Longitude, 1e-9)
	for i, r := range reports {
		assert.Equal(t, uint(5), r.BusID)
		require.NotNil(t, r.ShiftID)
		assert.Equal(t, uint(10), *r.ShiftID)
		assert.Equal(t, 40.0, r.Speed)
		assert.Equal(t, 5.0, r.Accuracy)
		if i > 0 {
			assert.Greater(t, r.Latitude, reports[i-1].Latitude, "samples stay in path order")
		}
	}
	assert.Equal(t, models.ShiftCompleted, repo.statusOf(10))
}

func TestSimulationFallsBackToBuiltInPath(t *testing.T) {
	sim, repo, rec := newFixture(0)
	defer sim.Close()

	require.NoError(t, sim.Start(context.Background(), 11, 2))
	waitFinished(t, sim, 11)

	reports := rec.all()
	require.Len(t, reports, 101)
	assert.InDelta(t, FallbackPath[0].Lat, reports[0].Latitude, 1e-9)
	assert.InDelta(t, FallbackPath[len(FallbackPath)-1].Lat, reports[100].Latitude, 1e-9)
	assert.Equal(t, models.ShiftCompleted, repo.statusOf(11))
}

func TestSimulationRejectsDuplicatesAndStops(t *testing.T) {
	sim, repo, rec := newFixture(time.Hour)
	defer sim.Close()
	ctx := context.Background()

	require.NoError(t, sim.Start(ctx, 10, 1))
	assert.Equal(t, models.ShiftActive, repo.statusOf(10))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	err := sim.Start(ctx, 10, 1)
	assert.True(t, apperr.HasCode(err, apperr.CodeSimulationRunning))
	assert.Equal(t, []uint{10}, sim.RunningShifts())

	assert.True(t, sim.Stop(10))
	assert.False(t, sim.Stop(10))
	waitFinished(t, sim, 10)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, models.ShiftActive, repo.statusOf(10), "a stopped walk leaves the shift active")

	require.NoError(t, sim.Start(ctx, 10, 1), "an active shift can be simulated again")
}

func TestSimulationStartFailures(t *testing.T) {
	sim, repo, rec := newFixture(0)
	defer sim.Close()
	ctx := context.Background()

	assert.True(t, apperr.IsKind(sim.Start(ctx, 10, -1), apperr.KindValidation))
	assert.True(t, apperr.IsKind(sim.Start(ctx, 99, 1), apperr.KindNotFound))
	assert.True(t, apperr.IsKind(sim.Start(ctx, 12, 1), apperr.KindInvalidTransition))
	assert.False(t, sim.Running(99))
	assert.False(t, sim.Running(12))
	assert.Equal(t, models.ShiftCompleted, repo.statusOf(12))
	assert.Zero(t, rec.count())
}

func TestCloseCancelsWalks(t *testing.T) {
	sim, repo, rec := newFixture(time.Hour)

	require.NoError(t, sim.Start(context.Background(), 13, 1))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	sim.Close()
	assert.False(t, sim.Running(13))
	assert.Equal(t, models.ShiftActive, repo.statusOf(13))
	assert.Error(t, sim.Start(context.Background(), 10, 1))
}

func TestRegistry(t *testing.T) {
	g := NewRegistry()
	assert.True(t, g.Start(1))
	assert.False(t, g.Start(1))
	assert.True(t, g.Start(2))
	assert.Equal(t, 2, g.Len())
	assert.True(t, g.IsRunning(1))

	assert.True(t, g.Stop(1))
	assert.False(t, g.IsRunning(1))
	assert.False(t, g.Stop(1))

	old, ok := g.begin(3)
	require.True(t, ok)
	g.Stop(3)
	_, ok = g.begin(3)
	require.True(t, ok)
	g.finish(3, old)
	assert.True(t, g.IsRunning(3), "a stale run does not unregister its successor")
}

func TestRegistryConcurrentStart(t *testing.T) {
	g := NewRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Start(7) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, FallbackPath, PathFor(nil))
	assert.Len(t, FallbackPath, 11)
	path := PathFor([]models.RouteStop{{Latitude: 1, Longitude: 2}, {Latitude: 3, Longitude: 4}})
	assert.Equal(t, []tracking.Point{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}}, path)
}
