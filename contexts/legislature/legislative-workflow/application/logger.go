package application

import "log/slog"

// ModuleName is attached to every log line emitted by this service.
const ModuleName = "legislature/legislative-workflow"

// ResolveLogger guarantees a non-nil logger for application/worker code paths.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
