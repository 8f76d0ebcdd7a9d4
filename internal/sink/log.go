package sink

import (
	"context"
	"log/slog"

	"github.com/gezibash/auditfwd/internal/severity"
	"github.com/gezibash/auditfwd/pkg/logging"
)

// Log writes every message to the operator logger instead of a collector.
// Useful for dry runs.
type Log struct {
	log *logging.Logger
}

// NewLog returns a Log sink writing through log.
func NewLog(log *logging.Logger) *Log {
	return &Log{log: log.WithComponent("sink")}
}

func slogLevel(l severity.Level) slog.Level {
	switch l {
	case severity.Critical, severity.Error:
		return slog.LevelError
	case severity.Warning:
		return slog.LevelWarn
	case severity.Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Send logs message; it never fails.
func (l *Log) Send(level severity.Level, message string) error {
	l.log.Log(context.Background(), slogLevel(level), message, "severity", level.String())
	return nil
}

// Close is a no-op.
func (l *Log) Close() error {
	return nil
}
