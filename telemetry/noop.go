package telemetry

import "context"

// NoopLogger discards everything. It is the default for tests and for
// processes started without an explicit Logger.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...any)        {}
func (NoopLogger) Info(context.Context, string, ...any)         {}
func (NoopLogger) Warn(context.Context, string, ...any)         {}
func (NoopLogger) Error(context.Context, error, string, ...any) {}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, ...string)             {}
func (NoopMetrics) RecordTimer(string, float64, ...string)   {}
func (NoopMetrics) RecordGauge(string, float64, ...string)   {}

// NoopTracer never samples.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) { return ctx, noopSpan{} }

type noopSpan struct{}

func (noopSpan) End()                       {}
func (noopSpan) AddEvent(string, ...any)    {}
func (noopSpan) SetStatusError(error)       {}
