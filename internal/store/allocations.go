package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ebus_manager/internal/models"
)

// BookSeat locks the shift row, hands the shift (with its bus) and its
// non-cancelled allocations to decide, and inserts the allocation decide
// returns. Concurrent bookings of a shift therefore serialize; the partial
// unique indexes catch writers that bypass this path.
func (s *Store) BookSeat(ctx context.Context, shiftID uint,
	decide func(shift *models.Shift, active []models.SeatAllocation) (*models.SeatAllocation, error),
) (*models.SeatAllocation, error) {
	var alloc *models.SeatAllocation
	err := s.inTx(ctx, "BookSeat", func(tx *gorm.DB) error {
		var shift models.Shift
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&shift, shiftID).Error; err != nil {
			return notFoundOr("lock", "shift", shiftID, err)
		}
		if err := tx.First(&shift.Bus, shift.BusID).Error; err != nil {
			return notFoundOr("load", "bus", shift.BusID, err)
		}
		var active []models.SeatAllocation
		if err := tx.Where("shift_id = ? AND status <> ?", shiftID, models.AllocationCancelled).
			Find(&active).Error; err != nil {
			return wrap("load allocations", err)
		}

		var err error
		if alloc, err = decide(&shift, active); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(alloc).Error; err != nil {
			return duplicateError("create allocation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}

// CancelAllocation locks the allocation, lets decide validate and mutate it, and saves it.
func (s *Store) CancelAllocation(ctx context.Context, id uint, decide func(*models.SeatAllocation) error) (*models.SeatAllocation, error) {
	var alloc models.SeatAllocation
	err := s.inTx(ctx, "CancelAllocation", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&alloc, id).Error; err != nil {
			return notFoundOr("lock", "booking", id, err)
		}
		if err := decide(&alloc); err != nil {
			return err
		}
		return wrap("save allocation", tx.Omit(clause.Associations).Save(&alloc).Error)
	})
	if err != nil {
		return nil, err
	}
	return &alloc, nil
}

// ActiveAllocations lists non-cancelled allocations of a shift with students.
func (s *Store) ActiveAllocations(ctx context.Context, shiftID uint) ([]models.SeatAllocation, error) {
	var allocs []models.SeatAllocation
	err := s.db.WithContext(ctx).Preload("Student").
		Where("shift_id = ? AND status <> ?", shiftID, models.AllocationCancelled).
		Order("seat_number").
		Find(&allocs).Error
	if err != nil {
		return nil, wrap("list allocations", err)
	}
	return allocs, nil
}

// CountActiveAllocations returns non-cancelled allocation counts per shift.
func (s *Store) CountActiveAllocations(ctx context.Context, shiftIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(shiftIDs))
	if len(shiftIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ShiftID uint
		Count   int
	}
	err := s.db.WithContext(ctx).Model(&models.SeatAllocation{}).
		Select("shift_id, COUNT(*) AS count").
		Where("shift_id IN ? AND status <> ?", shiftIDs, models.AllocationCancelled).
		Group("shift_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrap("count allocations", err)
	}
	for _, r := range rows {
		counts[r.ShiftID] = r.Count
	}
	return counts, nil
}

// StudentAllocations lists a student's non-cancelled bookings, newest shift first.
func (s *Store) StudentAllocations(ctx context.Context, studentID uint) ([]models.SeatAllocation, error) {
	var allocs []models.SeatAllocation
	err := s.db.WithContext(ctx).
		Preload("Shift").Preload("Shift.Bus").Preload("Shift.Route").Preload("Shift.Driver").
		Where("student_id = ? AND status <> ?", studentID, models.AllocationCancelled).
		Order("allocation_date DESC").
		Find(&allocs).Error
	if err != nil {
		return nil, wrap("list student allocations", err)
	}
	return allocs, nil
}
