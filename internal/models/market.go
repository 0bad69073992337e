// Package models defines the canonical data structures for tradeonly
package models

import (
	"github.com/shopspring/decimal"
)

// MarketSnapshot is one tracked index on the market overview
type MarketSnapshot struct {
	Symbol        string          `json:"symbol" validate:"required"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
}

// SectorPerformance is a sector proxy ticker and its signed percentage move
type SectorPerformance struct {
	Name        string          `json:"name" validate:"required"`
	Symbol      string          `json:"symbol"`
	Performance decimal.Decimal `json:"performance"`
}

// Mover is a symbol ranked by price change. Top gainers, the movers list and
// sector-filtered lists all share this shape.
type Mover struct {
	Symbol        string          `json:"symbol" validate:"required"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Volume        int64           `json:"volume" validate:"gte=0"`
	Website       string          `json:"website,omitempty"`
}

// StockGainer is the top gainers row
type StockGainer = Mover

// MoverType selects the direction of the movers list
type MoverType string

const (
	MoverGainers MoverType = "gainers"
	MoverLosers  MoverType = "losers"
)

// ParseMoverType validates a movers list type
func ParseMoverType(s string) (MoverType, error) {
	switch t := MoverType(normalizeToken(s)); t {
	case MoverGainers, MoverLosers:
		return t, nil
	}
	return "", invalid(ErrInvalidMoverType, s)
}

// Region selects which market endpoints serve the overview, movers and sector lists
type Region string

const (
	RegionUS    Region = "us"
	RegionIndia Region = "in"
)

// ParseRegion accepts "us", "in" or "india". Empty means RegionUS.
func ParseRegion(s string) (Region, error) {
	switch normalizeToken(s) {
	case "", "us":
		return RegionUS, nil
	case "in", "india", "indian":
		return RegionIndia, nil
	}
	return "", invalid(ErrInvalidRegion, s)
}
