package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradeonly/internal/app"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/fakeapi"
)

type rawFrame struct {
	Store string          `json:"store"`
	State json.RawMessage `json:"state"`
}

func newTestServer(t *testing.T) (*Server, *app.App, *httptest.Server) {
	t.Helper()
	fake := fakeapi.New()
	api := httptest.NewServer(fake.Handler())
	t.Cleanup(api.Close)

	cfg := common.NewDefaultConfig()
	cfg.API.BaseURL = api.URL
	cfg.API.RateLimit = 0
	cfg.Auth.BaseURL = api.URL
	cfg.Auth.SessionFile = filepath.Join(t.TempDir(), "session.json")

	a, err := app.NewWithConfig(context.Background(), cfg, common.NewSilentLogger())
	require.NoError(t, err)

	s, err := NewServer(a)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Shutdown(context.Background())
		a.Close()
	})
	return s, a, srv
}

func readRaw(t *testing.T, conn *websocket.Conn) rawFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f rawFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHealthAndVersion(t *testing.T) {
	_, _, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])

	resp2, err := http.Get(srv.URL + "/api/version")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var version common.VersionInfo
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&version))
	assert.Equal(t, common.CurrentVersion(), version)
}

func TestStateEndpoint(t *testing.T) {
	_, a, srv := newTestServer(t)
	require.NoError(t, a.Market.FetchMarketOverview(context.Background()))

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, StoreSession)
	assert.Contains(t, body, StoreStock)
	assert.Contains(t, string(body[StoreMarket]), "^GSPC")
}

func TestBridge_SnapshotsThenUpdates(t *testing.T) {
	_, a, srv := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var names []string
	for i := 0; i < 3; i++ {
		names = append(names, readRaw(t, conn).Store)
	}
	assert.Equal(t, []string{StoreMarket, StoreSession, StoreStock}, names)

	require.NoError(t, a.Stocks.FetchQuote(context.Background(), "TSLA"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f := readRaw(t, conn)
		if f.Store == StoreStock && strings.Contains(string(f.State), `"quote":{`) {
			assert.Contains(t, string(f.State), `"symbol":"TSLA"`)
			return
		}
	}
	t.Fatal("no stock frame with a quote received")
}

func TestShutdownEndpoint(t *testing.T) {
	s, _, srv := newTestServer(t)
	ch := make(chan struct{}, 1)
	s.SetShutdownChannel(ch)

	resp, err := http.Post(srv.URL+"/api/shutdown", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown was not signalled")
	}
}
