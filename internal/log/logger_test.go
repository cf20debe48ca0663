package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mileage/internal/core"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Output: buf, Component: ComponentHTTP})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	l.Info("hello", "k", "v")
	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentLedger).Warn("careful")
	if !strings.Contains(buf.String(), "component=ledger") {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v err=%v", in, got, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	var got *Logger
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil {
		t.Fatal("logger missing from context")
	}
	got.Info("inside")
	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id not attached: %s", buf.String())
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf))
	e := core.Entry{
		ID:            "e1",
		VehicleType:   core.Car,
		Miles:         decimal.NewFromInt(100),
		Rate:          decimal.RequireFromString("0.45"),
		Reimbursement: decimal.RequireFromString("45"),
		CreatedAt:     time.Now(),
	}
	sl.LogEntryCreated(context.Background(), "s1", "HM", e)
	out := buf.String()
	for _, want := range []string{"entry_id=e1", "reimbursement=45.00", "vehicle_type=car", "component=ledger"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentSettings, OpSave, nil)
	if !strings.Contains(buf.String(), `error="disk full"`) || !strings.Contains(buf.String(), "operation=save") {
		t.Fatalf("unexpected error log: %s", buf.String())
	}
}
