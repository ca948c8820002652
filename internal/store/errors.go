package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors shared by every Store implementation (spec §7).
var (
	// ErrNotFound indicates GetIncidentContext/GetLiveView/GetTombstones
	// was called with an incident id that was never created.
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a transport, deadlock, or timeout failure
	// the caller should retry; every write is idempotent so retrying is
	// always safe (spec §7 item 4).
	ErrTransient = errors.New("transient store error")

	// ErrFatal indicates constraint corruption or schema drift; these
	// require operator intervention and are never retried (spec §7 item 5).
	ErrFatal = errors.New("fatal store error")
)

// WrapDBError wraps a database/sql error with operation context,
// converting sql.ErrNoRows into ErrNotFound for consistent handling
// across backends.
func WrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is or wraps ErrTransient.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsFatal reports whether err is or wraps ErrFatal.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
