// Package log is the structured logging layer shared by the vault node, the
// key-derivation client and the command line tools.
//
// Loggers are passed explicitly or carried on a context.Context:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("vault"))
//	log.FromContext(ctx).Info("document stored", "address", addr)
//
// When the context carries a recording OpenTelemetry span, SetContextLogger
// wraps the logger in a SpanLogger so every log line also becomes a span event.
package log
