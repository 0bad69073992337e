package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tradeonly/internal/app"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/server"
)

type serveCmd struct {
	watch   string
	refresh time.Duration
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the WebSocket bridge for browser dashboards" }
func (*serveCmd) Usage() string {
	return `tradeonly serve [-watch SYMBOL] [-refresh 5m]

  Serves /ws (store snapshots as JSON frames), /api/state, /api/health and
  /api/version on [server] host:port. The market dashboard is loaded at
  startup and refreshed every -refresh; -watch keeps one quote live at the
  [polling] quote_interval.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.watch, "watch", "", "Symbol to keep live in the stock store")
	f.DurationVar(&c.refresh, "refresh", 5*time.Minute, "Market dashboard refresh interval (0 disables)")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, *configPath)
	if err != nil {
		return fail("Failed to initialize app: %v", err)
	}
	defer a.Close()

	srv, err := server.NewServer(a)
	if err != nil {
		return fail("Failed to create server: %v", err)
	}

	if err := a.Init(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Session restore failed")
	}
	if err := c.startBackground(ctx, a); err != nil {
		return fail("%v", err)
	}

	shutdownChan := make(chan struct{}, 1)
	srv.SetShutdownChannel(shutdownChan)

	common.PrintBanner(a.Config, a.Logger)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	status := subcommands.ExitSuccess
	select {
	case <-ctx.Done():
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
	case err := <-errChan:
		a.Logger.Error().Err(err).Msg("HTTP server failed")
		status = subcommands.ExitFailure
	}

	common.PrintShutdownBanner(a.Logger)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Logger.Info().Msg("Server stopped")
	return status
}

// startBackground loads the dashboard and registers the refresh schedules.
// The scheduler owns every handle and stops them in App.Close.
func (c *serveCmd) startBackground(ctx context.Context, a *app.App) error {
	go func() {
		if err := a.Market.LoadDashboard(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Initial dashboard load incomplete")
		}
	}()

	if c.refresh > 0 {
		if _, err := a.Scheduler.Every("dashboard", c.refresh, func(runCtx context.Context) {
			if err := a.Market.LoadDashboard(runCtx); err != nil {
				a.Logger.Warn().Err(err).Msg("Dashboard refresh incomplete")
			}
		}); err != nil {
			return err
		}
	}

	if c.watch != "" {
		if _, err := a.WatchQuote(ctx, c.watch); err != nil {
			return err
		}
	}
	return nil
}
