// Package interfaces defines the contracts between tradeonly stores and their collaborators
package interfaces

import (
	"context"

	"github.com/bobmcallan/tradeonly/internal/models"
)

// MarketDataAPI serves the aggregate market endpoints
type MarketDataAPI interface {
	GetMarketOverview(ctx context.Context, region models.Region) ([]models.MarketSnapshot, error)
	GetSectorPerformance(ctx context.Context) ([]models.SectorPerformance, error)
	GetTopGainers(ctx context.Context) ([]models.Mover, error)
	GetMovers(ctx context.Context, region models.Region, moverType models.MoverType) ([]models.Mover, error)
	GetSector(ctx context.Context, region models.Region, name string) ([]models.Mover, error)
}

// StockDataAPI serves the single-symbol endpoints
type StockDataAPI interface {
	GetQuote(ctx context.Context, symbol string) (*models.StockQuote, error)
	GetHistory(ctx context.Context, symbol string, period models.Period) (*models.StockHistory, error)
	SearchStocks(ctx context.Context, query string) ([]models.SearchResult, error)
}
