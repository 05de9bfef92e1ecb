package booking

import (
	"context"
	"sync"
	"time"

	"ebus_manager/internal/apperr"
	"ebus_manager/internal/models"
)

type fakeRepo struct {
	mu     sync.Mutex
	shifts map[uint]*models.Shift
	allocs []*models.SeatAllocation
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{shifts: make(map[uint]*models.Shift)}
}

func (f *fakeRepo) addShift(id uint, capacity int, status string, date time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sh := &models.Shift{ShiftCode: "SH-TEST", ShiftDate: date, StartTime: "08:00", EndTime: "09:00", Status: status}
	sh.ID = id
	sh.Bus = models.Bus{BusNumber: "UK04-1234", Capacity: capacity}
	sh.Route = models.Route{RouteName: "Haldwani - GEHU"}
	f.shifts[id] = sh
}

func (f *fakeRepo) active(shiftID uint) []models.SeatAllocation {
	var out []models.SeatAllocation
	for _, a := range f.allocs {
		if a.ShiftID == shiftID && a.Status != models.AllocationCancelled {
			out = append(out, *a)
		}
	}
	return out
}

func (f *fakeRepo) BookSeat(_ context.Context, shiftID uint,
	decide func(*models.Shift, []models.SeatAllocation) (*models.SeatAllocation, error),
) (*models.SeatAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sh, ok := f.shifts[shiftID]
	if !ok {
		return nil, apperr.NotFound("shift", shiftID)
	}
	shift := *sh
	alloc, err := decide(&shift, f.active(shiftID))
	if err != nil {
		return nil, err
	}
	f.nextID++
	alloc.ID = f.nextID
	stored := *alloc
	f.allocs = append(f.allocs, &stored)
	return alloc, nil
}

func (f *fakeRepo) CancelAllocation(_ context.Context, id uint, decide func(*models.SeatAllocation) error) (*models.SeatAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.allocs {
		if a.ID != id {
			continue
		}
		working := *a
		if err := decide(&working); err != nil {
			return nil, err
		}
		*a = working
		return &working, nil
	}
	return nil, apperr.NotFound("booking", id)
}

func (f *fakeRepo) ShiftWithBus(_ context.Context, id uint) (*models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sh, ok := f.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift", id)
	}
	out := *sh
	return &out, nil
}

func (f *fakeRepo) ActiveAllocations(_ context.Context, shiftID uint) ([]models.SeatAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active(shiftID), nil
}

func (f *fakeRepo) CountActiveAllocations(_ context.Context, ids []uint) (map[uint]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint]int)
	for _, id := range ids {
		if n := len(f.active(id)); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeRepo) BookableShifts(_ context.Context, from time.Time) ([]models.Shift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Shift
	for _, sh := range f.shifts {
		if sh.Open() && !sh.ShiftDate.Before(from) {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (f *fakeRepo) StudentAllocations(_ context.Context, studentID uint) ([]models.SeatAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SeatAllocation
	for _, a := range f.allocs {
		if a.StudentID == studentID && a.Status != models.AllocationCancelled {
			out = append(out, *a)
		}
	}
	return out, nil
}
