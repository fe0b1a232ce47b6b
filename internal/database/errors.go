package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Storage errors. Callers match them with errors.Is.
// A duplicate triangle is not an error: SaveTriangle reports it as
// inserted == false.
var (
	// ErrValidation is returned for malformed input. Nothing is written.
	ErrValidation = errors.New("validation error")

	// ErrStorageUnavailable is returned when the database file cannot be
	// opened or initialized, for example because it is not a SQLite file.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageBusy is returned when the database stayed locked after all
	// retries.
	ErrStorageBusy = errors.New("storage busy")

	// ErrIntegrityViolation is returned when a write breaks a constraint
	// other than triangle uniqueness, or when stored data is malformed.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// sqliteCode extracts the primary SQLite result code from err.
// It returns 0 when err does not come from the driver.
func sqliteCode(err error) int {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() & 0xff
	}
	return 0
}

// isBusy reports whether err is a lock conflict worth retrying.
func isBusy(err error) bool {
	switch sqliteCode(err) {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	default:
		return false
	}
}

// isConstraint reports whether err is a constraint failure.
func isConstraint(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT
}

// classify maps driver errors onto the package sentinels.
// Errors that already carry a sentinel are returned unchanged.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrStorageBusy),
		errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrIntegrityViolation):
		return fmt.Errorf("%s: %w", op, err)
	case isBusy(err):
		return fmt.Errorf("%s: %w: %w", op, ErrStorageBusy, err)
	case isConstraint(err):
		return fmt.Errorf("%s: %w: %w", op, ErrIntegrityViolation, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
