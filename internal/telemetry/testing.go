package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder captures spans and OTel metrics in memory. It is installed as
// the global tracer and meter provider for the duration of one test.
type Recorder struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewRecorder installs a Recorder globally and restores the previous
// providers when tb finishes.
func NewRecorder(tb testing.TB) *Recorder {
	tb.Helper()

	r := &Recorder{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
	}
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(r.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(r.reader))

	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	tb.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	return r
}

// Spans returns the ended spans called name, oldest first.
func (r *Recorder) Spans(name string) []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, s := range r.spans.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

// Span returns the most recent ended span called name and fails tb if there
// is none.
func (r *Recorder) Span(tb testing.TB, name string) trace.ReadOnlySpan {
	tb.Helper()
	spans := r.Spans(name)
	if len(spans) == 0 {
		var names []string
		for _, s := range r.spans.Ended() {
			names = append(names, s.Name())
		}
		tb.Fatalf("no ended span %q, have %v", name, names)
	}
	return spans[len(spans)-1]
}

// AssertSpanAttributes checks that the latest span called name carries every
// attribute in want. Integers compare as int64.
func (r *Recorder) AssertSpanAttributes(tb testing.TB, name string, want map[string]any) {
	tb.Helper()
	got := SpanAttributes(r.Span(tb, name))
	for key, expected := range want {
		if i, ok := expected.(int); ok {
			expected = int64(i)
		}
		value, ok := got[key]
		switch {
		case !ok:
			tb.Errorf("span %q has no attribute %q", name, key)
		case value != expected:
			tb.Errorf("span %q attribute %q = %v, want %v", name, key, value, expected)
		}
	}
}

// AssertSpanFailed checks that the latest span called name ended with an
// error status classified as kind.
func (r *Recorder) AssertSpanFailed(tb testing.TB, name, kind string) {
	tb.Helper()
	span := r.Span(tb, name)
	if span.Status().Code != codes.Error {
		tb.Errorf("span %q status = %v, want error", name, span.Status().Code)
	}
	if got := SpanAttributes(span)["error.kind"]; got != kind {
		tb.Errorf("span %q error.kind = %v, want %q", name, got, kind)
	}
}

// Sum totals every int64 data point of the counter called name.
func (r *Recorder) Sum(tb testing.TB, name string) int64 {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collecting metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// SpanAttributes flattens a span's attributes into a map.
func SpanAttributes(span trace.ReadOnlySpan) map[string]any {
	out := make(map[string]any, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = attrValue(kv.Value)
	}
	return out
}

func attrValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.STRING:
		return v.AsString()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.BOOL:
		return v.AsBool()
	default:
		return v.AsInterface()
	}
}
