package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPeriod is returned for a history period outside the enumerated set
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidMoverType is returned for a movers type other than gainers or losers
	ErrInvalidMoverType = errors.New("invalid mover type")
	// ErrInvalidRegion is returned for an unknown market region
	ErrInvalidRegion = errors.New("invalid region")
	// ErrEmptySymbol is returned when a symbol is blank after trimming
	ErrEmptySymbol = errors.New("symbol is required")
	// ErrEmptySector is returned when a sector name is blank after trimming
	ErrEmptySector = errors.New("sector name is required")
)

func invalid(sentinel error, value string) error {
	return fmt.Errorf("%w: %q", sentinel, value)
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSymbol upper-cases and trims a ticker
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", ErrEmptySymbol
	}
	return s, nil
}
