package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("EVENTLEDGER_OTEL_ENDPOINT", "")
	t.Setenv("EVENTLEDGER_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "eventledger-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("EVENTLEDGER_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("EVENTLEDGER_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "eventledger-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupRejectsBadRatio(t *testing.T) {
	t.Setenv("EVENTLEDGER_OTEL_SAMPLE_RATIO", "half")
	if _, err := Setup(context.Background(), "eventledger-test"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSetupWithConfigCreatesProvider(t *testing.T) {
	// Non-routable address so no export happens.
	cfg := Config{Endpoint: "http://192.0.2.1:4318", Enabled: true, SampleRatio: 0.5}
	shutdown, err := SetupWithConfig(context.Background(), "eventledger-test", cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestConfigSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: sdktrace.AlwaysSample().Description()},
		{ratio: 0, want: sdktrace.NeverSample().Description()},
		{ratio: 0.25, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		if got := (Config{SampleRatio: tt.ratio}).sampler().Description(); got != tt.want {
			t.Fatalf("sampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestConfigActive(t *testing.T) {
	if (Config{Enabled: true}).Active() {
		t.Fatal("expected inactive without endpoint")
	}
	if (Config{Endpoint: "http://x", Enabled: false}).Active() {
		t.Fatal("expected inactive when disabled")
	}
	if !(Config{Endpoint: " http://x ", Enabled: true}).Active() {
		t.Fatal("expected active")
	}
}
