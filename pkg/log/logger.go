package log

// Logger is a leveled, key-value structured logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs and terminates the process for the zap backend.
	Fatal(msg string, keysAndValues ...any)

	// WithKV returns a logger that adds key=value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the key-value pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a named child logger; names nest with dots.
	WithName(name string) Logger
	Name() string
	// AddCallerSkip is used by wrappers so the reported caller stays correct.
	AddCallerSkip(skip int) Logger
}

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder receives log entries that must be attached to a trace span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	RecordEvent(name string, keysAndValues ...any)
	RecordError(name string, keysAndValues ...any)
}
