package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"ebus_manager/internal/apperr"
)

func TestIsUniqueViolation(t *testing.T) {
	constraint, ok := IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: idxSeatActive}))
	assert.True(t, ok)
	assert.Equal(t, idxSeatActive, constraint)

	constraint, ok = IsUniqueViolation(&pq.Error{Code: "23505", Constraint: idxStudentActive})
	assert.True(t, ok)
	assert.Equal(t, idxStudentActive, constraint)

	_, ok = IsUniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)
	_, ok = IsUniqueViolation(errors.New("boom"))
	assert.False(t, ok)
}

func TestDuplicateErrorMapsConstraints(t *testing.T) {
	err := duplicateError("book", &pgconn.PgError{Code: "23505", ConstraintName: idxSeatActive})
	assert.True(t, apperr.HasCode(err, apperr.CodeSeatTaken))

	err = duplicateError("book", &pq.Error{Code: "23505", Constraint: idxStudentActive})
	assert.True(t, apperr.HasCode(err, apperr.CodeAlreadyBooked))

	err = duplicateError("bus", &pgconn.PgError{Code: "23505", ConstraintName: "idx_buses_bus_number"})
	assert.True(t, apperr.HasCode(err, apperr.CodeDuplicate))

	err = duplicateError("book", &pq.Error{Code: "23503", Constraint: "fk_seat_allocations_student"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	err = duplicateError("bus", errors.New("conn reset"))
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, Limit: 50}, Page{}.normalize())
	assert.Equal(t, Page{Page: 3, Limit: 20}, Page{Page: 3, Limit: 20}.normalize())
	assert.Equal(t, Page{Page: 1, Limit: 50}, Page{Page: -1, Limit: 10_000}.normalize())
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 37.5, percentage(30, 80))
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 100.0, percentage(40, 40))
	assert.Equal(t, 0.0, percentage(5, 0))
}
