package observability

import (
	"errors"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

func TestIsHealthRequestLog(t *testing.T) {
	if !isHealthRequestLog("http request", []any{"method", "GET", "path", "/healthz"}) {
		t.Fatalf("expected health check log to be skipped")
	}
	if isHealthRequestLog("http request", []any{"path", "/v1/roster"}) {
		t.Fatalf("did not expect roster request log to be skipped")
	}
	if isHealthRequestLog("roster committed", []any{"path", "/healthz"}) {
		t.Fatalf("did not expect non-request event to be skipped")
	}
}

func TestBuildOTelLogAttributes(t *testing.T) {
	attrs := buildOTelLogAttributes([]any{"user_id", "u1", "player_count", 11, "error", errors.New("boom"), "dangling"})
	if len(attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "user_id" || attrs[0].Value.AsString() != "u1" {
		t.Fatalf("unexpected user_id attribute")
	}
	if attrs[1].Key != "player_count" || attrs[1].Value.AsInt64() != 11 {
		t.Fatalf("unexpected player_count attribute")
	}
	if attrs[2].Value.AsString() != "boom" {
		t.Fatalf("unexpected error attribute")
	}
	if attrs[3].Key != "dangling" || attrs[3].Value.Kind() != otellog.KindEmpty {
		t.Fatalf("unexpected dangling attribute")
	}
}

func TestToOTelLogValue(t *testing.T) {
	if v := toOTelLogValue(2 * time.Second); v.AsString() != "2s" {
		t.Fatalf("unexpected duration value: %s", v.AsString())
	}
	if v := toOTelLogValue([]string{"a", "b"}); v.Kind() != otellog.KindSlice || len(v.AsSlice()) != 2 {
		t.Fatalf("expected slice value")
	}
	if v := toOTelLogValue(struct{ A int }{A: 1}); v.AsString() != "{1}" {
		t.Fatalf("unexpected fallback value: %s", v.AsString())
	}
}

func TestToOTelSeverity(t *testing.T) {
	if toOTelSeverity(zapcore.WarnLevel) != otellog.SeverityWarn {
		t.Fatalf("unexpected warn severity")
	}
	if toOTelSeverity(zapcore.ErrorLevel) != otellog.SeverityError {
		t.Fatalf("unexpected error severity")
	}
}
