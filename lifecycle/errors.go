package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/linesmerrill/resolveit-api/consent"
)

// Caller-visible failures. Handlers map these to HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidStatus     = errors.New("unknown case status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidState      = errors.New("operation not allowed in the current case status")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrMissingContact    = errors.New("opposite party has no email or phone")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidAction     = errors.New("action must be accept or decline")
	ErrAlreadyResponded  = errors.New("consent already responded")
	ErrMismatch          = errors.New("consent token does not match the case")
	ErrExpired           = fmt.Errorf("consent link expired: %w", consent.ErrExpired)

	// ErrInconsistent means a panel was stored but its case could not be updated.
	// An operator has to run reconcile-panels.
	ErrInconsistent = errors.New("panel and case are out of sync")
)

func validationError(problems []string) error {
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
}
