package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique-constraint failure. On
// Postgres a non-empty constraint must match the violated index; SQLite does
// not name indexes, so any uniqueness failure matches there.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if code, name, ok := postgresError(err); ok {
		return code == pgUniqueViolation && (constraint == "" || name == constraint)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return true
	}
	if !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, `"`+constraint+`"`)
}

// IsRetryableTx reports whether a transaction failed only because it lost a
// race with another one and can be run again as is.
func IsRetryableTx(err error) bool {
	code, _, ok := postgresError(err)
	return ok && (code == pgSerializationFailure || code == pgDeadlockDetected)
}

func postgresError(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
