package tracer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"ensemble-ai/internal/infra/config"
)

// installRecorder swaps in an in-memory provider and restores a noop one
// when the test finishes.
func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
	return sr
}

func TestSetupDisabledInstallsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())

	if _, ok := otel.GetTracerProvider().(noop.TracerProvider); !ok {
		t.Errorf("disabled tracing should install a noop provider, got %T", otel.GetTracerProvider())
	}
}

func TestSetupNoopExporters(t *testing.T) {
	for _, exporter := range []string{"", "noop"} {
		shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: exporter})
		if err != nil {
			t.Fatalf("Setup(%q): %v", exporter, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown for %q: %v", exporter, err)
		}
	}
}

func TestSetupStdoutExporter(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestStartSpanRecordsNameAndAttributes(t *testing.T) {
	sr := installRecorder(t)

	_, span := StartSpan(context.Background(), "orchestrator.generate",
		trace.WithAttributes(StringAttr("model", "claude-sonnet-4-5"), IntAttr("iteration", 3)),
	)
	SetOK(span)
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("got %d spans, want 1", len(ended))
	}
	got := ended[0]
	if got.Name() != "orchestrator.generate" {
		t.Errorf("span name = %q", got.Name())
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", got.Status().Code)
	}

	attrs := make(map[string]string)
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["model"] != "claude-sonnet-4-5" {
		t.Errorf("model attr = %q", attrs["model"])
	}
	if attrs["iteration"] != "3" {
		t.Errorf("iteration attr = %q", attrs["iteration"])
	}
}

func TestRecordErrorSetsFailedStatus(t *testing.T) {
	sr := installRecorder(t)

	_, span := StartSpan(context.Background(), "tool.execute")
	RecordError(span, errors.New("provider unreachable"))
	span.End()

	got := sr.Ended()[0]
	if got.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", got.Status().Code)
	}
	if got.Status().Description != "provider unreachable" {
		t.Errorf("status description = %q", got.Status().Description)
	}
	if len(got.Events()) == 0 {
		t.Error("error event not recorded on span")
	}
}
