package trusty

import "github.com/google/uuid"

// Logger is a minimal structured logging interface used by the engine and
// the directory service. Implementations should accept alternating
// key/value pairs as variadic arguments. This keeps the interface small and
// easy to mock in tests.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation/trace ID string for each request/log.
// It should be cheap and safe for concurrent calls.
type TraceIDFunc func() string

func defaultTraceID() string {
	return uuid.NewString()
}

// WithLogger installs a Logger on the engine via EngineOption.
func WithLogger(l Logger) EngineOption {
	return func(e *AccessControlEngine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator on the engine.
func WithTraceIDFunc(f TraceIDFunc) EngineOption {
	return func(e *AccessControlEngine) error {
		e.traceIDFunc = f
		return nil
	}
}
