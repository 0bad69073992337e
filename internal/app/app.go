// Package app wires configuration, clients, persistence and the stores
// into one object shared by the CLI commands and the bridge server.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/tradeonly/internal/clients/authapi"
	"github.com/bobmcallan/tradeonly/internal/clients/marketapi"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/events"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/poll"
	"github.com/bobmcallan/tradeonly/internal/storage"
	"github.com/bobmcallan/tradeonly/internal/stores/market"
	"github.com/bobmcallan/tradeonly/internal/stores/session"
	"github.com/bobmcallan/tradeonly/internal/stores/stock"
)

// EventBus carries auth changes between the auth client and the session store
type EventBus interface {
	interfaces.AuthEventSource
	interfaces.AuthEventPublisher
	Close() error
}

// App holds every constructed dependency. Nothing here is a package-level
// singleton; tests build as many Apps as they need.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	API         *marketapi.Client
	Auth        *authapi.Client
	Events      EventBus
	Watchlists  interfaces.WatchlistRepository
	Session     *session.Store
	Market      *market.Store
	Stocks      *stock.Store
	Scheduler   *poll.Scheduler
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, TRADEONLY_CONFIG,
// tradeonly.toml next to the binary, then config/tradeonly.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("TRADEONLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "tradeonly.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tradeonly.toml" // fallback for development
		}
	}
	return configPath
}

// New loads configuration and builds the App. configPath may be empty.
func New(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(ctx, config, common.NewLoggerFromConfig(config.Logging))
}

// NewWithConfig builds the App from an already loaded config
func NewWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	region, err := models.ParseRegion(config.API.Region)
	if err != nil {
		return nil, fmt.Errorf("invalid [api] region: %w", err)
	}

	bus, err := newEventBus(ctx, config.Events, logger)
	if err != nil {
		return nil, err
	}

	repo, err := storage.New(ctx, config.Storage, logger)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize watchlist storage: %w", err)
	}

	api := marketapi.NewClientFromConfig(config.API, logger)
	auth := authapi.NewClientFromConfig(config.Auth, bus, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		API:         api,
		Auth:        auth,
		Events:      bus,
		Watchlists:  repo,
		Session:     session.NewStore(auth, bus, repo, logger),
		Market:      market.NewStore(api, market.WithRegion(region), market.WithLogger(logger)),
		Stocks:      stock.NewStore(api, stock.WithLogger(logger)),
		Scheduler:   poll.NewScheduler(logger),
		StartupTime: startupStart,
	}

	logger.Info().
		Str("api", api.BaseURL()).
		Str("region", string(region)).
		Str("storage", config.Storage.Driver).
		Str("events", config.Events.Driver).
		Dur("elapsed", time.Since(startupStart)).
		Msg("Application initialized")

	return a, nil
}

func newEventBus(ctx context.Context, config common.EventsConfig, logger *common.Logger) (EventBus, error) {
	switch config.Driver {
	case "", "local":
		return events.NewBroker(logger), nil
	case "redis":
		bus := events.NewRedisBus(config.RedisAddr, config.Channel, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := bus.Ping(pingCtx); err != nil {
			bus.Close()
			return nil, fmt.Errorf("failed to connect to redis event bus: %w", err)
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown events driver: %s (supported: local, redis)", config.Driver)
	}
}

// Init restores the session and subscribes to auth changes
func (a *App) Init(ctx context.Context) error {
	return a.Session.Init(ctx)
}

// WatchQuote starts polling symbol into the stock store at the configured interval
func (a *App) WatchQuote(ctx context.Context, symbol string) (*poll.Handle, error) {
	return poll.WatchQuote(ctx, a.Scheduler, a.Stocks, symbol, a.Config.Polling.GetQuoteInterval())
}

// Close stops polling and releases the session store, event bus and
// watchlist repository.
func (a *App) Close() error {
	var errs []error
	if err := a.Scheduler.Close(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := a.Session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}
	if err := a.Events.Close(); err != nil {
		errs = append(errs, fmt.Errorf("events: %w", err))
	}
	if err := a.Watchlists.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	a.Logger.Info().Msg("Application closed")
	return errors.Join(errs...)
}
