package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestServer_QuoteAndNotFound(t *testing.T) {
	fake := New()
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	resp, body := get(t, srv, "/api/stock/quote/tsla")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	q := body.(map[string]any)
	assert.Equal(t, 250.0, q["price"])
	assert.Contains(t, q, "percent_change")

	resp, body = get(t, srv, "/api/stock/quote/NOPE")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Stock NOPE not found", body.(map[string]any)["detail"])
	assert.Equal(t, 1, fake.Calls("/api/stock/quote/NOPE"))
}

func TestServer_HistoryIsAscendingAndEndsAtQuote(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, body := get(t, srv, "/api/stock/history/AAPL?period=5d")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := body.(map[string]any)["data"].([]any)
	require.Len(t, rows, 5)
	first := rows[0].(map[string]any)["date"].(string)
	last := rows[4].(map[string]any)
	assert.Less(t, first, last["date"].(string))
	assert.Equal(t, 210.62, last["close"])

	resp, _ = get(t, srv, "/api/stock/history/AAPL?period=2w")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RegionsAndMovers(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	_, body := get(t, srv, "/api/market/indian/overview")
	rows := body.([]any)
	require.NotEmpty(t, rows)
	assert.Equal(t, "^NSEI", rows[0].(map[string]any)["symbol"])

	_, body = get(t, srv, "/api/market/movers?type=losers")
	assert.Equal(t, "INTC", body.([]any)[0].(map[string]any)["symbol"])

	resp, _ := get(t, srv, "/api/market/movers?type=flat")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = get(t, srv, "/api/market/sector/Technology")
	assert.Len(t, body.([]any), 5)
}

func TestServer_FailNextQueuesOnce(t *testing.T) {
	fake := New()
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	fake.FailNext("/api/market/overview", http.StatusServiceUnavailable)

	resp, _ := get(t, srv, "/api/market/overview")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = get(t, srv, "/api/market/overview")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, fake.TotalCalls("/api/market"))
}

func TestServer_Delay(t *testing.T) {
	fake := New()
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	fake.Delay("/api/market/gainers", 50*time.Millisecond)
	start := time.Now()
	resp, _ := get(t, srv, "/api/market/gainers")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/market/overview", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func postJSON(t *testing.T, url string, body any, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_AuthFlow(t *testing.T) {
	srv := httptest.NewServer(New().Handler())
	defer srv.Close()

	resp, body := postJSON(t, srv.URL+"/auth/v1/signup", map[string]any{
		"email": "ada@example.com", "password": "s3cret!", "data": map[string]string{"display_name": "Ada"},
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["access_token"])

	resp, _ = postJSON(t, srv.URL+"/auth/v1/token?grant_type=password", map[string]string{"email": "ada@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = postJSON(t, srv.URL+"/auth/v1/token?grant_type=password", map[string]string{"email": "ADA@example.com", "password": "s3cret!"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := body["access_token"].(string)
	refresh := body["refresh_token"].(string)

	resp, body = postJSON(t, srv.URL+"/auth/v1/token?grant_type=refresh_token", map[string]string{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, refresh, body["refresh_token"])

	resp, _ = postJSON(t, srv.URL+"/auth/v1/token?grant_type=refresh_token", map[string]string{"refresh_token": refresh}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "refresh tokens are single use")

	resp, _ = postJSON(t, srv.URL+"/auth/v1/logout", nil, access)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r2.StatusCode)
}
