// Package telemetry provides OpenTelemetry instrumentation for vectord.
//
// # Overview
//
// This package implements distributed tracing and metrics collection using the
// OpenTelemetry Go SDK. It exports telemetry data to an OTEL Collector over
// OTLP (gRPC or HTTP/protobuf), which forwards to the metrics and tracing
// backends.
//
// # Usage
//
// Create telemetry instance from the loaded service config:
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(ctx)
//
// Use tracer and meter:
//
//	tracer := tel.Tracer("vectord.store")
//	ctx, span := tracer.Start(ctx, "VectorSearch")
//	defer span.End()
//
//	meter := tel.Meter("vectord.store")
//	counter, _ := meter.Int64Counter("search.requests")
//	counter.Add(ctx, 1)
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: "grpc"
//	  service_name: "vectord"
//	  sample_rate: 1.0  # 100% in dev, lower in prod
//	  metrics_enabled: true
//	  metrics_interval: "15s"
//
// # Error Handling
//
// Telemetry failures do not crash the application. If telemetry cannot be
// initialized, the instance degrades gracefully and returns no-op providers.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	tracer := tt.Tracer("test")
//	_, span := tracer.Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
