package scheduling

import (
	"context"
	"sync"
	"time"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
	"ebus_manager/internal/store"
)

// fakeRepo serializes CreateShift and UpdateShift under one mutex, the way
// the row locks serialize them in Postgres.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  uint
	shifts  map[uint]*models.Shift
	drivers map[uint]string
	routes  map[uint]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		shifts:  make(map[uint]*models.Shift),
		drivers: map[uint]string{1: "Ravi Kumar", 2: "Anil Singh", 3: "Meena Joshi"},
		routes:  map[uint]string{1: "Haldwani - GEHU", 2: "Kathgodam - GEHU"},
	}
}

func (f *fakeRepo) hydrate(sh *models.Shift) *models.Shift {
	out := *sh
	out.Driver = models.Driver{FullName: f.drivers[sh.DriverID]}
	out.Driver.ID = sh.DriverID
	out.Route = models.Route{RouteName: f.routes[sh.RouteID]}
	out.Route.ID = sh.RouteID
	return &out
}

// seed inserts a shift without conflict checks.
func (f *fakeRepo) seed(sh models.Shift) *models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sh.ID = f.nextID
	if sh.ShiftCode == "" {
		sh.ShiftCode = "SEED"
	}
	f.shifts[sh.ID] = &sh
	return f.hydrate(&sh)
}

func (f *fakeRepo) CreateShift(_ context.Context, shift *models.Shift, check func([]models.Shift) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.drivers[shift.DriverID]; !ok {
		return apperr.NotFound("driver", shift.DriverID)
	}
	var existing []models.Shift
	for _, sh := range f.shifts {
		if sh.Open() && sh.ShiftDate.Equal(shift.ShiftDate) &&
			(sh.BusID == shift.BusID || sh.DriverID == shift.DriverID) {
			existing = append(existing, *sh)
		}
	}
	if err := check(existing); err != nil {
		return err
	}
	f.nextID++
	shift.ID = f.nextID
	stored := *shift
	f.shifts[shift.ID] = &stored
	return nil
}

func (f *fakeRepo) UpdateShift(_ context.Context, id uint, mutate func(*models.Shift) error) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sh, ok := f.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift", id)
	}
	working := *sh
	if err := mutate(&working); err != nil {
		return nil, err
	}
	f.shifts[id] = &working
	return f.hydrate(&working), nil
}

func (f *fakeRepo) FindShift(_ context.Context, id uint) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sh, ok := f.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift", id)
	}
	return f.hydrate(sh), nil
}

func (f *fakeRepo) ListShifts(_ context.Context, filter store.ShiftFilter) ([]models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Shift
	for _, sh := range f.shifts {
		if filter.Status != "" && sh.Status != filter.Status {
			continue
		}
		if filter.BusID != 0 && sh.BusID != filter.BusID {
			continue
		}
		out = append(out, *f.hydrate(sh))
	}
	return out, nil
}

func (f *fakeRepo) OpenShiftsOn(_ context.Context, day time.Time) ([]models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Shift
	for _, sh := range f.shifts {
		if sh.Open() && sh.ShiftDate.Equal(models.DateOnly(day)) {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (f *fakeRepo) status(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shifts[id].Status
}

func (f *fakeRepo) all() []models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Shift, 0, len(f.shifts))
	for _, sh := range f.shifts {
		out = append(out, *sh)
	}
	return out
}
