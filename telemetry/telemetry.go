// Package telemetry defines the logging/metrics/tracing capability
// interfaces the runtime's processes use, and a goa.design/clue-backed
// implementation, adapted from the teacher's clue.go wrapper pattern.
package telemetry

import "context"

type (
	// Logger is a structured, context-scoped logger.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, err error, msg string, keyvals ...any)
	}

	// Metrics records counters, timers and gauges.
	Metrics interface {
		IncCounter(name string, tags ...string)
		RecordTimer(name string, millis float64, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts spans.
	Tracer interface {
		Start(ctx context.Context, name string) (context.Context, Span)
	}

	// Span is an in-flight trace span.
	Span interface {
		End()
		AddEvent(name string, keyvals ...any)
		SetStatusError(err error)
	}
)
