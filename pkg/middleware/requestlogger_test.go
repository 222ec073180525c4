package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/storefront-sync/pkg/logger"
)

type sessionCtxKey struct{}

func newTestLogger(w *bytes.Buffer) *slog.Logger {
	return logger.NewWithWriter("test-svc", "info", w)
}

func sessionFromCtx(ctx context.Context) string {
	s, _ := ctx.Value(sessionCtxKey{}).(string)
	return s
}

func logOnce(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handler log")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestRequestLogger_IncludesCorrelationAndSession(t *testing.T) {
	var buf bytes.Buffer

	ctx := logger.WithCorrelationID(context.Background(), "corr-test-123")
	ctx = context.WithValue(ctx, sessionCtxKey{}, "shopper-42")
	req := httptest.NewRequest(http.MethodGet, "/account", nil).WithContext(ctx)

	out := logOnce(t, RequestLogger(newTestLogger(&buf), sessionFromCtx), req, &buf)

	if got := out["correlation_id"]; got != "corr-test-123" {
		t.Errorf("correlation_id = %v, want %q", got, "corr-test-123")
	}
	if got := out["session_id"]; got != "shopper-42" {
		t.Errorf("session_id = %v, want %q", got, "shopper-42")
	}
}

func TestRequestLogger_NoSession_OmitsField(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/login", nil)

	out := logOnce(t, RequestLogger(newTestLogger(&buf), sessionFromCtx), req, &buf)

	if _, ok := out["session_id"]; ok {
		t.Error("session_id should not be present when not set")
	}
}

func TestRequestLogger_NilSessionFunc(t *testing.T) {
	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	out := logOnce(t, RequestLogger(newTestLogger(&buf), nil), req, &buf)
	if got := out["msg"]; got != "handler log" {
		t.Errorf("msg = %v", got)
	}
}

func TestRequestLogger_IncludesTraceFields(t *testing.T) {
	var buf bytes.Buffer

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(ctx)

	out := logOnce(t, RequestLogger(newTestLogger(&buf), nil), req, &buf)

	if got := out["trace_id"]; got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace_id = %v", got)
	}
	if got := out["span_id"]; got != "00f067aa0ba902b7" {
		t.Errorf("span_id = %v", got)
	}
}

func TestRequestLogging_SetsCorrelationHeader(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newTestLogger(&buf))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CorrelationHeader, "given-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(CorrelationHeader); got != "given-id" {
		t.Errorf("correlation header = %q, want %q", got, "given-id")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"path":"/api/v1/cart"`)) {
		t.Errorf("expected access log line, got %s", buf.String())
	}
}

func TestRequestLogging_SkipsProbePaths(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogging(newTestLogger(&buf), "/health", "/metrics")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if buf.Len() != 0 {
		t.Errorf("expected no log output for probe path, got %s", buf.String())
	}
	if rec.Header().Get(CorrelationHeader) == "" {
		t.Error("correlation header should still be generated")
	}
}

func TestRecovery_Returns500Envelope(t *testing.T) {
	var buf bytes.Buffer
	handler := Recovery(newTestLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"INTERNAL_ERROR"`)) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("panic recovered")) {
		t.Error("expected panic to be logged")
	}
}
