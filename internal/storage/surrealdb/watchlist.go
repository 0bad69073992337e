package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
)

// WatchlistStore stores one record per (user_id, symbol) in the watchlist table.
type WatchlistStore struct {
	db     *surrealdb.DB
	logger *common.Logger
	closer func() error
}

var _ interfaces.WatchlistRepository = (*WatchlistStore)(nil)

type watchlistRecord struct {
	UserID  string    `json:"user_id"`
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
	Seq     int64     `json:"seq"`
}

// NewWatchlistStore creates a store over an open connection. Close on the
// returned store does not close db.
func NewWatchlistStore(db *surrealdb.DB, logger *common.Logger) *WatchlistStore {
	return &WatchlistStore{db: db, logger: logger}
}

// Open connects with NewManager and returns a store that owns the connection.
func Open(ctx context.Context, config common.SurrealConfig, logger *common.Logger) (*WatchlistStore, error) {
	m, err := NewManager(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	s := m.Watchlist()
	s.closer = m.Close
	return s, nil
}

func (s *WatchlistStore) List(ctx context.Context, userID string) ([]string, error) {
	sql := "SELECT * FROM watchlist WHERE user_id = $user_id ORDER BY seq ASC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]watchlistRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}

	symbols := []string{}
	if results != nil && len(*results) > 0 {
		for _, rec := range (*results)[0].Result {
			symbols = append(symbols, rec.Symbol)
		}
	}
	return symbols, nil
}

func (s *WatchlistStore) exists(ctx context.Context, userID, symbol string) (bool, error) {
	sql := "SELECT * FROM watchlist WHERE user_id = $user_id AND symbol = $symbol"
	vars := map[string]any{"user_id": userID, "symbol": symbol}

	results, err := surrealdb.Query[[]watchlistRecord](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to look up watchlist entry: %w", err)
	}
	return results != nil && len(*results) > 0 && len((*results)[0].Result) > 0, nil
}

func (s *WatchlistStore) Insert(ctx context.Context, userID, symbol string) error {
	found, err := s.exists(ctx, userID, symbol)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	now := time.Now()
	rec := watchlistRecord{UserID: userID, Symbol: symbol, AddedAt: now, Seq: now.UnixNano()}
	sql := "CREATE watchlist CONTENT $record"
	if _, err := surrealdb.Query[[]watchlistRecord](ctx, s.db, sql, map[string]any{"record": rec}); err != nil {
		return fmt.Errorf("failed to insert watchlist entry: %w", err)
	}

	s.logger.Debug().Str("user_id", userID).Str("symbol", symbol).Msg("Watchlist entry inserted")
	return nil
}

func (s *WatchlistStore) Delete(ctx context.Context, userID, symbol string) error {
	sql := "DELETE watchlist WHERE user_id = $user_id AND symbol = $symbol"
	vars := map[string]any{"user_id": userID, "symbol": symbol}

	if _, err := surrealdb.Query[[]watchlistRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}
	return nil
}

func (s *WatchlistStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
