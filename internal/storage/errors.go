package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pfm/internal/core"
)

// Postgres SQLSTATE codes that mean "try again".
const (
	pqLockNotAvailable     = "55P03"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqUniqueViolation      = "23505"
)

// classify maps driver errors onto the core taxonomy, keeping the original
// error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case isConflict(err):
		return fmt.Errorf("%s: %w: %w", op, core.ErrStorageConflict, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, core.ErrEmailTaken, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConflict(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch string(pe.Code) {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return string(pe.Code) == pqUniqueViolation
	}
	return false
}
