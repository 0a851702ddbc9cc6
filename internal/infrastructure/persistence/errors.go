package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes that mean a concurrent writer got there first.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
)

// translateError maps driver errors onto reconciliation errors.
// notFound builds the typed error for a missing row; it may be nil when a
// missing row cannot happen.
func translateError(err error, resource string, notFound func() error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil {
		return notFound()
	}
	if isConflict(err) {
		return receiving.NewConcurrencyConflict(resource, err)
	}
	return fmt.Errorf("%s: %w", resource, err)
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected,
			sqlStateLockNotAvailable, sqlStateUniqueViolation:
			return true
		}
		return false
	}
	// sqlite reports contention as SQLITE_BUSY / SQLITE_LOCKED text
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
