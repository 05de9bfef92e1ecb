package scheduling

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/realtime"
	"ebus_manager/internal/store"
)

var testDay = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newTestScheduler() (*Scheduler, *fakeRepo, *realtime.Memory) {
	repo := newFakeRepo()
	mem := realtime.NewMemory()
	s := NewScheduler(repo, realtime.NewPublisher(mem, nil), nil, time.UTC)
	s.now = func() time.Time { return testDay.Add(9*time.Hour + 30*time.Minute) }
	return s, repo, mem
}

func input(bus, driver uint, start, end string) ShiftInput {
	return ShiftInput{BusID: bus, DriverID: driver, RouteID: 1, Date: testDay,
		StartTime: start, EndTime: end, ShiftType: models.ShiftMorning}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       bool
	}{
		{"partial", 540, 600, 570, 630, true},
		{"touching end", 540, 600, 600, 660, true},
		{"touching start", 600, 660, 540, 600, true},
		{"contained", 540, 720, 600, 630, true},
		{"disjoint", 540, 600, 601, 660, false},
		{"before", 600, 660, 480, 599, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestCreateShiftConflicts(t *testing.T) {
	cases := []struct {
		name     string
		in       ShiftInput
		wantCode string
	}{
		{"same bus overlapping", input(1, 2, "09:30", "10:30"), apperr.CodeBusConflict},
		{"same bus touching", input(1, 2, "10:00", "11:00"), apperr.CodeBusConflict},
		{"same bus after", input(1, 2, "10:01", "11:00"), ""},
		{"same driver overlapping", input(2, 1, "09:15", "09:45"), apperr.CodeDriverConflict},
		{"other bus and driver", input(2, 2, "09:00", "10:00"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestScheduler()
			_, err := s.CreateShift(context.Background(), input(1, 1, "09:00", "10:00"))
			require.NoError(t, err)

			shift, err := s.CreateShift(context.Background(), tc.in)
			if tc.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, models.ShiftScheduled, shift.Status)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, tc.wantCode), "got %v", err)
			assert.True(t, apperr.IsKind(err, apperr.KindConflict))
		})
	}
}

func TestCreateShiftIgnoresOtherDatesAndTerminalShifts(t *testing.T) {
	s, repo, mem := newTestScheduler()
	repo.seed(models.Shift{BusID: 1, DriverID: 1, RouteID: 1, ShiftDate: testDay,
		StartTime: "09:00", EndTime: "10:00", Status: models.ShiftCancelled})
	repo.seed(models.Shift{BusID: 1, DriverID: 1, RouteID: 1, ShiftDate: testDay,
		StartTime: "09:00", EndTime: "10:00", Status: models.ShiftCompleted})

	shift, err := s.CreateShift(context.Background(), input(1, 1, "09:00", "10:00"))
	require.NoError(t, err)
	assert.NotEmpty(t, shift.ShiftCode)
	assert.Equal(t, testDay, shift.ShiftDate)

	next := input(1, 1, "09:00", "10:00")
	next.Date = testDay.AddDate(0, 0, 1)
	_, err = s.CreateShift(context.Background(), next)
	require.NoError(t, err)

	assert.Equal(t, 0, mem.Len(), "creating a shift must not broadcast")
}

func TestCreateShiftValidation(t *testing.T) {
	s, _, _ := newTestScheduler()
	bad := []ShiftInput{
		{},
		input(1, 1, "9:00", "10:00"),
		input(1, 1, "09:00", "24:00"),
		input(1, 1, "10:00", "09:00"),
		input(1, 1, "10:00", "10:00"),
		{BusID: 1, DriverID: 1, RouteID: 1, Date: testDay, StartTime: "09:00", EndTime: "10:00", ShiftType: "night"},
	}
	for _, in := range bad {
		_, err := s.CreateShift(context.Background(), in)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "input %+v: %v", in, err)
	}

	shift, err := s.CreateShift(context.Background(), input(1, 1, "09:00:00", "10:30:59"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", shift.StartTime)
	assert.Equal(t, "10:30", shift.EndTime)
}

func TestCreateShiftUnknownDriver(t *testing.T) {
	s, _, _ := newTestScheduler()
	_, err := s.CreateShift(context.Background(), input(1, 99, "09:00", "10:00"))
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTransitionTable(t *testing.T) {
	statuses := []string{models.ShiftScheduled, models.ShiftActive, models.ShiftCompleted, models.ShiftCancelled}
	allowed := map[[2]string]bool{
		{models.ShiftScheduled, models.ShiftActive}:    true,
		{models.ShiftScheduled, models.ShiftCancelled}: true,
		{models.ShiftActive, models.ShiftCompleted}:    true,
		{models.ShiftActive, models.ShiftCancelled}:    true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(from+"->"+to, func(t *testing.T) {
				s, repo, _ := newTestScheduler()
				sh := repo.seed(models.Shift{BusID: 1, DriverID: 1, RouteID: 1, ShiftDate: testDay,
					StartTime: "09:00", EndTime: "10:00", Status: from})

				_, err := s.UpdateStatus(context.Background(), sh.ID, to)
				if allowed[[2]string{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, repo.status(sh.ID))
					return
				}
				assert.True(t, apperr.IsKind(err, apperr.KindInvalidTransition), "got %v", err)
				assert.Equal(t, from, repo.status(sh.ID))
			})
		}
	}
}

func TestUpdateStatusStampsAndBroadcasts(t *testing.T) {
	s, repo, mem := newTestScheduler()
	sh := repo.seed(models.Shift{BusID: 7, DriverID: 1, RouteID: 1, ShiftDate: testDay,
		StartTime: "09:00", EndTime: "10:00", ShiftType: models.ShiftMorning, Status: models.ShiftScheduled})
	ctx := context.Background()

	started, err := s.UpdateStatus(ctx, sh.ID, models.ShiftActive)
	require.NoError(t, err)
	require.NotNil(t, started.ActualStartTime)
	assert.Nil(t, started.ActualEndTime)

	v, ok := mem.Get(realtime.StatusKey(7))
	require.True(t, ok)
	st := v.(realtime.BusStatus)
	assert.Equal(t, models.ShiftActive, st.Status)
	assert.Equal(t, sh.ID, st.ShiftID)
	assert.Equal(t, "Ravi Kumar", st.DriverName)
	assert.Equal(t, "Haldwani - GEHU", st.RouteName)
	assert.Equal(t, models.ShiftMorning, st.ShiftType)

	done, err := s.UpdateStatus(ctx, sh.ID, models.ShiftCompleted)
	require.NoError(t, err)
	require.NotNil(t, done.ActualEndTime)
	v, _ = mem.Get(realtime.StatusKey(7))
	assert.Equal(t, models.ShiftCompleted, v.(realtime.BusStatus).Status)
}

func TestCancelDoesNotBroadcast(t *testing.T) {
	s, repo, mem := newTestScheduler()
	sh := repo.seed(models.Shift{BusID: 7, DriverID: 1, RouteID: 1, ShiftDate: testDay,
		StartTime: "09:00", EndTime: "10:00", Status: models.ShiftScheduled})

	_, err := s.UpdateStatus(context.Background(), sh.ID, models.ShiftCancelled)
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestUpdateStatusRejectsUnknownStatusAndShift(t *testing.T) {
	s, _, _ := newTestScheduler()
	_, err := s.UpdateStatus(context.Background(), 1, "paused")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = s.UpdateStatus(context.Background(), 404, models.ShiftActive)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = s.List(context.Background(), store.ShiftFilter{Status: "paused"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

// Concurrent random creations never leave two open, overlapping shifts
// sharing a bus or driver on the same date.
func TestConcurrentCreationsKeepNoOverlapInvariant(t *testing.T) {
	s, repo, _ := newTestScheduler()
	rng := rand.New(rand.NewSource(42))
	inputs := make([]ShiftInput, 200)
	for i := range inputs {
		start := 360 + rng.Intn(12)*60 + rng.Intn(4)*15
		end := start + 30 + rng.Intn(4)*30
		in := input(uint(1+rng.Intn(3)), uint(1+rng.Intn(3)), models.FormatClock(start), models.FormatClock(end))
		in.Date = testDay.AddDate(0, 0, rng.Intn(2))
		inputs[i] = in
	}

	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateShift(context.Background(), in)
			if err != nil {
				assert.True(t, apperr.IsKind(err, apperr.KindConflict), "unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	shifts := repo.all()
	require.NotEmpty(t, shifts)
	for i := range shifts {
		for j := i + 1; j < len(shifts); j++ {
			a, b := shifts[i], shifts[j]
			if !a.ShiftDate.Equal(b.ShiftDate) || (a.BusID != b.BusID && a.DriverID != b.DriverID) {
				continue
			}
			aS, _ := models.ParseClock(a.StartTime)
			aE, _ := models.ParseClock(a.EndTime)
			bS, _ := models.ParseClock(b.StartTime)
			bE, _ := models.ParseClock(b.EndTime)
			assert.False(t, Overlaps(aS, aE, bS, bE), "shifts %d and %d overlap", a.ID, b.ID)
		}
	}
}
