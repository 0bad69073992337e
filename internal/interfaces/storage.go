package interfaces

import (
	"context"
)

// WatchlistRepository persists per-user watchlists keyed by (user_id, symbol)
type WatchlistRepository interface {
	// List returns the user's symbols in insertion order
	List(ctx context.Context, userID string) ([]string, error)

	// Insert adds a symbol. Inserting an existing pair is not an error.
	Insert(ctx context.Context, userID, symbol string) error

	// Delete removes a symbol. Deleting a missing pair is not an error.
	Delete(ctx context.Context, userID, symbol string) error

	Close() error
}
