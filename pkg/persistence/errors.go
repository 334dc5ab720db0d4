// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrLeaseExitNotFound indicates a lease exit was not found by the given identifier.
	ErrLeaseExitNotFound = errors.New("lease exit not found")

	// ErrLeaseExitAlreadyExists indicates a lease exit with the same identifier already exists.
	ErrLeaseExitAlreadyExists = errors.New("lease exit already exists")

	// ErrNotificationNotFound indicates a notification was not found by the given identifier.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrRevisionConflict indicates a conditional update lost a race with a
	// concurrent writer: the stored revision no longer matches the one the
	// caller read. Callers re-read and retry.
	ErrRevisionConflict = errors.New("lease exit revision conflict")
)

// LeaseExitError wraps lease-exit storage errors with operation context.
type LeaseExitError struct {
	Op          string // Operation being performed (e.g., "GetByID", "Update")
	LeaseExitID string
	Err         error
}

func (e *LeaseExitError) Error() string {
	return fmt.Sprintf("%s operation failed for lease exit %s: %v", e.Op, e.LeaseExitID, e.Err)
}

func (e *LeaseExitError) Unwrap() error {
	return e.Err
}

// IsLeaseExitNotFound checks whether err indicates a missing lease exit.
func IsLeaseExitNotFound(err error) bool {
	return errors.Is(err, ErrLeaseExitNotFound)
}

// IsRevisionConflict checks whether err indicates a lost conditional update.
func IsRevisionConflict(err error) bool {
	return errors.Is(err, ErrRevisionConflict)
}

// IsNotificationNotFound checks whether err indicates a missing notification.
func IsNotificationNotFound(err error) bool {
	return errors.Is(err, ErrNotificationNotFound)
}
