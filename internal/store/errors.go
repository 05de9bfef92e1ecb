package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"ebus_manager/internal/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const (
	idxSeatActive    = "idx_seat_alloc_shift_seat_active"
	idxStudentActive = "idx_seat_alloc_shift_student_active"
)

// pgError extracts the SQLSTATE and constraint from either SQL driver's error.
func pgError(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// IsUniqueViolation reports whether err is a Postgres unique violation from
// either SQL driver, returning the violated constraint.
func IsUniqueViolation(err error) (string, bool) {
	code, constraint, ok := pgError(err)
	if !ok || code != uniqueViolation {
		return "", false
	}
	return constraint, true
}

// duplicateError maps unique violations onto conflicts and dangling
// references onto not-found errors.
func duplicateError(op string, err error) error {
	code, constraint, ok := pgError(err)
	if ok && code == foreignKeyViolation {
		return &apperr.Error{Kind: apperr.KindNotFound, Code: apperr.CodeNotFound,
			Message: "referenced record does not exist", Err: err}
	}
	if !ok || code != uniqueViolation {
		return wrap(op, err)
	}
	switch constraint {
	case idxSeatActive:
		return apperr.Conflict(apperr.CodeSeatTaken, "seat is already booked")
	case idxStudentActive:
		return apperr.Conflict(apperr.CodeAlreadyBooked, "you already have a booking for this shift")
	default:
		return apperr.Conflict(apperr.CodeDuplicate, "record already exists (%s)", constraint)
	}
}
