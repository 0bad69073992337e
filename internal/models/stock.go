package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockQuote is the single-symbol detail view
type StockQuote struct {
	Symbol        string              `json:"symbol" validate:"required"`
	Name          string              `json:"name"`
	Price         decimal.Decimal     `json:"price" validate:"gte=0"`
	Change        decimal.Decimal     `json:"change"`
	ChangePercent decimal.Decimal     `json:"changePercent"`
	Volume        int64               `json:"volume" validate:"gte=0"`
	MarketCap     decimal.Decimal     `json:"marketCap" validate:"gte=0"`
	PERatio       decimal.NullDecimal `json:"peRatio"` // null when earnings are negative or undefined
	EPS           decimal.NullDecimal `json:"eps"`
	DayHigh       decimal.Decimal     `json:"dayHigh"`
	DayLow        decimal.Decimal     `json:"dayLow"`
	Open          decimal.Decimal     `json:"open"`
	PreviousClose decimal.Decimal     `json:"previousClose"`
	Currency      string              `json:"currency"`
	Exchange      string              `json:"exchange"`
	Website       string              `json:"website,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// InDayRange reports whether DayLow <= Price <= DayHigh. Source data may
// briefly violate this, so it is informational only.
func (q *StockQuote) InDayRange() bool {
	return q.DayLow.LessThanOrEqual(q.Price) && q.Price.LessThanOrEqual(q.DayHigh)
}

// HistoryPoint is one OHLCV bar
type HistoryPoint struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume" validate:"gte=0"`
}

// StockHistory holds bars sorted ascending by date. Non-trading days may be absent.
type StockHistory struct {
	Symbol string         `json:"symbol" validate:"required"`
	Period Period         `json:"period" validate:"oneof=1d 5d 1mo 3mo 6mo 1y ytd max"`
	Points []HistoryPoint `json:"points" validate:"dive"`
}

// Latest returns the most recent bar, if any
func (h *StockHistory) Latest() (HistoryPoint, bool) {
	if h == nil || len(h.Points) == 0 {
		return HistoryPoint{}, false
	}
	return h.Points[len(h.Points)-1], true
}

// SearchResult is one symbol search hit
type SearchResult struct {
	Symbol   string `json:"symbol" validate:"required"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"` // equity, index, etf...
}

// Period is a historical range selector
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

// Periods lists every accepted period in display order
var Periods = []Period{Period1D, Period5D, Period1M, Period3M, Period6M, Period1Y, PeriodYTD, PeriodMax}

// DefaultPeriod is used when a caller does not pick one
const DefaultPeriod = Period1M

// ParsePeriod returns ErrInvalidPeriod for anything outside Periods
func ParsePeriod(s string) (Period, error) {
	p := Period(normalizeToken(s))
	if p.Valid() {
		return p, nil
	}
	return "", invalid(ErrInvalidPeriod, s)
}

// Valid reports whether p is one of Periods
func (p Period) Valid() bool {
	for _, v := range Periods {
		if p == v {
			return true
		}
	}
	return false
}
