// Package surrealdb persists watchlists in SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/tradeonly/internal/common"
)

// Manager owns the SurrealDB connection.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	watchlist *WatchlistStore
}

// NewManager connects, signs in, selects the namespace/database and defines
// the tables the repositories use.
func NewManager(ctx context.Context, config common.SurrealConfig, logger *common.Logger) (*Manager, error) {
	db, err := surrealdb.New(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Username,
		"pass": config.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Namespace, config.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManager(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Address).
		Str("namespace", config.Namespace).
		Str("database", config.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	// SurrealDB v3 errors on querying tables that do not exist
	schema := []string{
		"DEFINE TABLE IF NOT EXISTS watchlist SCHEMALESS",
		"DEFINE INDEX IF NOT EXISTS watchlist_user_symbol ON watchlist FIELDS user_id, symbol UNIQUE",
	}
	for _, sql := range schema {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to apply schema %q: %w", sql, err)
		}
	}

	return &Manager{
		db:        db,
		logger:    logger,
		watchlist: NewWatchlistStore(db, logger),
	}, nil
}

// Watchlist returns the watchlist repository
func (m *Manager) Watchlist() *WatchlistStore {
	return m.watchlist
}

// Close closes the connection
func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}
