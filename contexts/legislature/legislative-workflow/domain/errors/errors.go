package errors

import (
	"errors"
	"fmt"
)

// Categories. Callers branch on these with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrPrecondition      = errors.New("precondition failed")
	ErrPermission        = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
)

var (
	ErrInvalidBillInput      = fmt.Errorf("%w: subject, code, rationale and proposer are required", ErrValidation)
	ErrInvalidDecision       = fmt.Errorf("%w: decision must be validate or declass", ErrValidation)
	ErrInvalidAnalysis       = fmt.Errorf("%w: fund and form analysis are required", ErrValidation)
	ErrInvalidVoteValue      = fmt.Errorf("%w: vote must be yes, no or abstain", ErrValidation)
	ErrInvalidActor          = fmt.Errorf("%w: actor id is required", ErrValidation)
	ErrInvalidNotification   = fmt.Errorf("%w: invalid notification", ErrValidation)
	ErrBillDeclassed         = fmt.Errorf("%w: bill is declassed", ErrInvalidTransition)
	ErrBillAlreadyDecided    = fmt.Errorf("%w: conference decision already recorded", ErrInvalidTransition)
	ErrBillNotSchedulable    = fmt.Errorf("%w: bill is not ready for plenary", ErrInvalidTransition)
	ErrSessionAlreadyActive  = fmt.Errorf("%w: a plenary session is already active", ErrConflict)
	ErrIdempotencyConflict   = fmt.Errorf("%w: idempotency key reused with a different request", ErrConflict)
	ErrNoActiveSession       = fmt.Errorf("%w: no plenary session is active", ErrPrecondition)
	ErrSessionBillMismatch   = fmt.Errorf("%w: active session is for another bill", ErrPrecondition)
	ErrRoleNotAllowed        = fmt.Errorf("%w: role is not allowed to perform this action", ErrPermission)
	ErrBillNotFound          = fmt.Errorf("%w: bill", ErrNotFound)
	ErrNotificationNotFound  = fmt.Errorf("%w: notification", ErrNotFound)
	ErrOutboxMessageNotFound = fmt.Errorf("%w: outbox message", ErrNotFound)
)
