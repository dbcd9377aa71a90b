package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"goa.design/clue/log"
)

// ClueLogger delegates to goa.design/clue/log. Callers are expected to have
// set up the request-scoped log.Context (via log.Context and
// log.WithFormat/log.WithDebug) before these methods are invoked.
type ClueLogger struct{}

func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fs := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, kvToClue(keyvals)...)
	log.Warn(ctx, fs...)
}

func (ClueLogger) Error(ctx context.Context, err error, msg string, keyvals ...any) {
	log.Error(ctx, err, fielders(msg, keyvals)...)
}

func fielders(msg string, keyvals []any) []log.Fielder {
	return append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToClue(keyvals)...)
}

// kvToClue converts a variadic key/value slice into Clue fielders. An odd
// trailing key is paired with a nil value.
func kvToClue(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: key, V: v})
	}
	return fielders
}

// ClueMetrics records counters/timers/gauges via OpenTelemetry. OTEL has no
// synchronous gauge instrument, so RecordGauge uses a histogram suffixed
// "_gauge" as a practical substitute, matching the teacher's approach.
type ClueMetrics struct {
	Meter metric.Meter
}

func (m ClueMetrics) IncCounter(name string, tags ...string) {
	counter, err := m.Meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m ClueMetrics) RecordTimer(name string, millis float64, tags ...string) {
	hist, err := m.Meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), millis, metric.WithAttributes(tagsToAttrs(tags)...))
}

func (m ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	hist, err := m.Meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	hist.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		attrs = append(attrs, attribute.String(tags[i], tags[i+1]))
	}
	return attrs
}

// ClueTracer starts OpenTelemetry spans.
type ClueTracer struct {
	Tracer trace.Tracer
}

func (t ClueTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	spanCtx, span := t.Tracer.Start(ctx, name)
	return spanCtx, clueSpan{span: span}
}

type clueSpan struct {
	span trace.Span
}

func (s clueSpan) End() { s.span.End() }

func (s clueSpan) AddEvent(name string, keyvals ...any) {
	attrs := make([]attribute.KeyValue, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		attrs = append(attrs, attribute.String(key, toString(keyvals[i+1])))
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s clueSpan) SetStatusError(err error) {
	if err == nil {
		return
	}
	s.span.SetStatus(codes.Error, err.Error())
	s.span.RecordError(err)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case error:
		return t.Error()
	default:
		return ""
	}
}
