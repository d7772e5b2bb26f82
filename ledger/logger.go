package ledger

import "context"

// Logger provides a minimal interface for observability and debugging.
// It is designed to be optional, with zero overhead when disabled.
// Users can implement this interface to integrate their preferred logging
// library; see the zaplog package for a zap-backed implementation.
type Logger interface {
	// Debug logs debug-level information for detailed troubleshooting.
	Debug(ctx context.Context, msg string, keyvals ...any)

	// Info logs informational messages about normal operations.
	Info(ctx context.Context, msg string, keyvals ...any)

	// Error logs error-level information about failures.
	Error(ctx context.Context, msg string, keyvals ...any)
}

// NoOpLogger is a logger that does nothing.
// It is the default when no logging is desired.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(_ context.Context, _ string, _ ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(_ context.Context, _ string, _ ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(_ context.Context, _ string, _ ...any) {}
