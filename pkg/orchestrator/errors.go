package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

var (
	// ErrLeaseExitNotFound mirrors the persistence sentinel for callers of
	// this package.
	ErrLeaseExitNotFound = persistence.ErrLeaseExitNotFound

	// ErrInvalidState mirrors the approval sentinel: the operation violates
	// a lifecycle invariant and must not be retried.
	ErrInvalidState = approval.ErrInvalidState

	// ErrUnknownRole is returned when a request names a role outside the
	// closed role enumeration.
	ErrUnknownRole = errors.New("unknown role")

	// ErrNoStepForRole is returned when a form submission arrives from a
	// role that has no step in this lease exit's sequence.
	ErrNoStepForRole = errors.New("no workflow step assigned to role")
)

// ValidationError reports a form payload rejected by the validation gate.
// It is surfaced to the caller with details and never retried.
type ValidationError struct {
	FormType string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form %s failed validation: %s", e.FormType, strings.Join(e.Errors, "; "))
}

// AsValidationError unwraps err into a ValidationError if it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr, true
	}

	return nil, false
}

// IsNotFound reports whether err means the lease exit does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrLeaseExitNotFound)
}

// IsInvalidState reports whether err is a lifecycle invariant violation.
func IsInvalidState(err error) bool {
	return errors.Is(err, approval.ErrInvalidState)
}

// IsUnknownRole reports whether err names a role outside the enumeration or
// outside this lease exit's approval chain.
func IsUnknownRole(err error) bool {
	return errors.Is(err, ErrUnknownRole) ||
		errors.Is(err, ErrNoStepForRole) ||
		errors.Is(err, approval.ErrRoleNotFound)
}
