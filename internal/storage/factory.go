// Package storage selects and builds the watchlist repository.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/storage/postgres"
	"github.com/bobmcallan/tradeonly/internal/storage/surrealdb"
)

// Driver names accepted in [storage] driver.
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverSurrealDB = "surrealdb"
)

// New creates the watchlist repository named by config.Driver.
// An empty driver selects memory.
func New(ctx context.Context, config common.StorageConfig, logger *common.Logger) (interfaces.WatchlistRepository, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil

	case DriverPostgres:
		return postgres.Open(ctx, config.Postgres, logger)

	case DriverSurrealDB:
		return surrealdb.Open(ctx, config.SurrealDB, logger)

	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: memory, postgres, surrealdb)", driver)
	}
}
