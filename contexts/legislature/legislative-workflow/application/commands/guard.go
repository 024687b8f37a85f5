package commands

import (
	"errors"
	"log/slog"

	application "assembly/contexts/legislature/legislative-workflow/application"
	domainerrors "assembly/contexts/legislature/legislative-workflow/domain/errors"
	"assembly/contexts/legislature/legislative-workflow/ports"
)

// RejectionReason maps an error to its taxonomy bucket.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, domainerrors.ErrValidation):
		return "validation"
	case errors.Is(err, domainerrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domainerrors.ErrConflict):
		return "conflict"
	case errors.Is(err, domainerrors.ErrPrecondition):
		return "precondition"
	case errors.Is(err, domainerrors.ErrPermission):
		return "permission"
	case errors.Is(err, domainerrors.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

func reportFailure(logger *slog.Logger, metrics ports.Metrics, operation string, err error, attrs ...any) error {
	reason := RejectionReason(err)
	fields := make([]any, 0, len(attrs)+10)
	fields = append(fields,
		"event", "workflow_"+operation+"_rejected",
		"module", application.ModuleName,
		"layer", "application",
		"reason", reason,
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	if reason == "internal" {
		logger.Error("workflow operation failed", fields...)
	} else {
		logger.Warn("workflow operation rejected", fields...)
	}
	if metrics != nil {
		metrics.OperationRejected(operation, reason)
	}
	return err
}
