package log

var _ Logger = SpanLogger{}

// SpanLogger forwards every entry to a wrapped Logger (tagged with trace and
// span ids) and to a SpanEventRecorder. Error and Fatal mark the span failed.
type SpanLogger struct {
	lg  Logger
	ser SpanEventRecorder
}

func NewSpanLogger(lg Logger, ser SpanEventRecorder) Logger {
	return SpanLogger{lg: lg.AddCallerSkip(1), ser: ser}
}

func (sl SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanKV(LevelDebug, keysAndValues)...)
	sl.lg.Debug(msg, sl.logKV(keysAndValues)...)
}

func (sl SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanKV(LevelInfo, keysAndValues)...)
	sl.lg.Info(msg, sl.logKV(keysAndValues)...)
}

func (sl SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanKV(LevelWarn, keysAndValues)...)
	sl.lg.Warn(msg, sl.logKV(keysAndValues)...)
}

func (sl SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.spanKV(LevelError, keysAndValues)...)
	sl.lg.Error(msg, sl.logKV(keysAndValues)...)
}

func (sl SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.spanKV(LevelFatal, keysAndValues)...)
	sl.lg.Fatal(msg, sl.logKV(keysAndValues)...)
}

func (sl SpanLogger) WithKV(key string, value any) Logger {
	return SpanLogger{lg: sl.lg.WithKV(key, value), ser: sl.ser}
}

func (sl SpanLogger) GetAllKV() []any { return sl.lg.GetAllKV() }

func (sl SpanLogger) WithName(name string) Logger {
	return SpanLogger{lg: sl.lg.WithName(name), ser: sl.ser}
}

func (sl SpanLogger) Name() string { return sl.lg.Name() }

func (sl SpanLogger) AddCallerSkip(skip int) Logger {
	return SpanLogger{lg: sl.lg.AddCallerSkip(skip), ser: sl.ser}
}

func (sl SpanLogger) logKV(keysAndValues []any) []any {
	return append([]any{"traceId", sl.ser.TraceID(), "spanId", sl.ser.SpanID()}, keysAndValues...)
}

// spanKV carries the level, the component name and the persistent pairs, which
// a span event would otherwise lose.
func (sl SpanLogger) spanKV(level Level, keysAndValues []any) []any {
	kv := append([]any{"level", string(level), "component", sl.lg.Name()}, sl.lg.GetAllKV()...)
	return append(kv, keysAndValues...)
}
