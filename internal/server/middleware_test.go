package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bobmcallan/tradeonly/internal/common"
)

type logLevelCapture struct {
	buf bytes.Buffer
}

func (c *logLevelCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logLevelCapture) output() string {
	return c.buf.String()
}

func TestLoggingMiddleware_4xxUsesInfoLevel(t *testing.T) {
	// At WARN level an Info() event is filtered out
	capture := &logLevelCapture{}
	logger := common.NewLoggerWithOutput("warn", capture)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if output := capture.output(); strings.Contains(output, "HTTP request") {
		t.Errorf("Expected 404 log to be filtered at WARN level, but it passed through: %s", output)
	}
}

func TestLoggingMiddleware_5xxUsesErrorLevel(t *testing.T) {
	capture := &logLevelCapture{}
	logger := common.NewLoggerWithOutput("warn", capture)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/broken", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if output := capture.output(); !strings.Contains(output, "HTTP request") {
		t.Errorf("Expected 500 log to pass WARN filter, got: %q", output)
	}
}

func TestLoggingMiddleware_2xxUsesTraceLevel(t *testing.T) {
	capture := &logLevelCapture{}
	logger := common.NewLoggerWithOutput("info", capture)

	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if output := capture.output(); strings.Contains(output, "HTTP request") {
		t.Errorf("Expected 200 log to be filtered at INFO level, but it passed through: %s", output)
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc123" {
		t.Errorf("X-Correlation-ID = %q, want abc123", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if got := rr.Header().Get("X-Correlation-ID"); len(got) != 8 {
		t.Errorf("generated correlation ID = %q, want 8 chars", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}
