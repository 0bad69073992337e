package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireMethod_WritesAllowHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	rr := httptest.NewRecorder()

	if RequireMethod(rr, req, http.MethodGet, http.MethodHead) {
		t.Fatal("expected POST to be rejected")
	}
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rr.Code)
	}
	if got := rr.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q, want %q", got, "GET, HEAD")
	}
}

func TestWriteError_JSONBody(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadRequest, "bad input")

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := rr.Body.String(); body != "{\"error\":\"bad input\"}\n" {
		t.Errorf("body = %q", body)
	}
}
