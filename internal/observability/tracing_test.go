package observability

import (
	"testing"

	"github.com/deusflow/pilbarawatch/internal/config"
)

func TestInitTracerDisabled(t *testing.T) {
	InitTracer(&config.Config{TracingEnabled: false}, "test")
	if Enabled() {
		t.Fatal("tracer provider installed while tracing is disabled")
	}
	ShutdownTracer()
}

func TestInitTracerEnabled(t *testing.T) {
	// The gRPC client dials lazily, so no collector needs to be listening.
	InitTracer(&config.Config{TracingEnabled: true, TracingEndpoint: "127.0.0.1:4317"}, "test")
	if !Enabled() {
		t.Fatal("expected tracer provider to be installed")
	}
	ShutdownTracer()
	if Enabled() {
		t.Error("provider still set after shutdown")
	}
}
