// Package telemetry provides OpenTelemetry tracing and metrics export for
// projectrag.
//
// Spans and OTel metrics are exported to a collector over OTLP/gRPC:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// New installs its providers globally, so packages that call otel.Tracer or
// otel.Meter at init pick them up. Disabled telemetry leaves the no-op
// globals in place. An exporter that cannot be built degrades the instance
// instead of failing startup; Degraded reports why.
//
// Prometheus metrics are separate and served on /metrics by the HTTP server.
//
// Recorder captures spans and metrics in memory so tests can assert on the
// store and HTTP instrumentation.
package telemetry
