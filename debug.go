package messagebroker

import (
	"log/slog"
)

// DebugLogger receives diagnostics about failed sends when debug output is
// requested. Origin names the operation that failed.
type DebugLogger interface {
	Log(message, origin string)
}

// DebugLoggerFunc adapts a function to the DebugLogger interface.
type DebugLoggerFunc func(message, origin string)

// Log calls f(message, origin).
func (f DebugLoggerFunc) Log(message, origin string) {
	f(message, origin)
}

type slogDebugLogger struct {
	logger *slog.Logger
}

// NewSlogDebugLogger writes debug diagnostics to logger as warnings.
func NewSlogDebugLogger(logger *slog.Logger) DebugLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogDebugLogger{logger: logger}
}

func (l slogDebugLogger) Log(message, origin string) {
	l.logger.Warn(message, "origin", origin)
}
