// Package postgres persists watchlists in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS watchlist (
	id         BIGSERIAL,
	user_id    TEXT        NOT NULL,
	symbol     TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, symbol)
)`

// WatchlistStore stores one row per (user_id, symbol).
type WatchlistStore struct {
	db     *sqlx.DB
	logger *common.Logger
}

var _ interfaces.WatchlistRepository = (*WatchlistStore)(nil)

// Open connects, sizes the pool and ensures the watchlist table exists.
func Open(ctx context.Context, config common.PostgresConfig, logger *common.Logger) (*WatchlistStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create watchlist table: %w", err)
	}

	logger.Info().Str("host", config.Host).Str("dbname", config.DBName).Msg("PostgreSQL watchlist store initialized")
	return &WatchlistStore{db: db, logger: logger}, nil
}

func (s *WatchlistStore) List(ctx context.Context, userID string) ([]string, error) {
	symbols := []string{}
	err := s.db.SelectContext(ctx, &symbols,
		`SELECT symbol FROM watchlist WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return symbols, nil
}

func (s *WatchlistStore) Insert(ctx context.Context, userID, symbol string) error {
	const query = `
		INSERT INTO watchlist (user_id, symbol)
		VALUES (:user_id, :symbol)
		ON CONFLICT (user_id, symbol) DO NOTHING`

	params := map[string]interface{}{
		"user_id": userID,
		"symbol":  symbol,
	}
	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return fmt.Errorf("failed to insert watchlist entry: %w", err)
	}
	return nil
}

func (s *WatchlistStore) Delete(ctx context.Context, userID, symbol string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND symbol = $2`, userID, symbol); err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}
	return nil
}

func (s *WatchlistStore) Close() error {
	return s.db.Close()
}
