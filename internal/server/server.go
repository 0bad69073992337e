// Package server exposes the stores to browser consumers: a WebSocket
// bridge plus health, version and snapshot endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/tradeonly/internal/app"
	"github.com/bobmcallan/tradeonly/internal/bridge"
	"github.com/bobmcallan/tradeonly/internal/common"
)

// Store names used in bridge frames and /api/state
const (
	StoreSession = "session"
	StoreMarket  = "market"
	StoreStock   = "stock"
)

// Server wraps the HTTP server, the bridge hub and the application reference.
type Server struct {
	app          *app.App
	hub          *bridge.Hub
	server       *http.Server
	logger       *common.Logger
	shutdownChan chan struct{}
}

// SetShutdownChannel sets the channel that will be signaled when HTTP shutdown is requested.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// NewServer creates the bridge server and attaches the three stores to the hub.
func NewServer(a *app.App) (*Server, error) {
	hub := bridge.NewHub(a.Logger)

	attach := []error{
		bridge.Attach(hub, StoreSession, a.Session.State(), a.Session.Subscribe),
		bridge.Attach(hub, StoreMarket, a.Market.State(), a.Market.Subscribe),
		bridge.Attach(hub, StoreStock, a.Stocks.State(), a.Stocks.Subscribe),
	}
	for _, err := range attach {
		if err != nil {
			hub.Close()
			return nil, err
		}
	}

	s := &Server{
		app:    a,
		hub:    hub,
		logger: a.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Hub returns the bridge hub.
func (s *Server) Hub() *bridge.Hub {
	return s.hub
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting bridge server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and disconnects bridge clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
