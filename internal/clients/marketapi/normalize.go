package marketapi

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/models"
)

// Field alternatives, first present non-null value wins. The backend has
// shipped both snake_case and camelCase payloads.
var (
	pathSymbol        = []string{"$.symbol", "$.ticker", "$.code"}
	pathName          = []string{"$.name", "$.shortName", "$.short_name", "$.shortname", "$.longName", "$.long_name", "$.longname"}
	pathPrice         = []string{"$.price", "$.current_price", "$.currentPrice", "$.regularMarketPrice", "$.last"}
	pathChange        = []string{"$.change", "$.regularMarketChange"}
	pathChangePercent = []string{"$.changePercent", "$.percent_change", "$.change_percent", "$.changesPercentage", "$.regularMarketChangePercent"}
	pathVolume        = []string{"$.volume", "$.regularMarketVolume"}
	pathMarketCap     = []string{"$.marketCap", "$.market_cap"}
	pathPERatio       = []string{"$.peRatio", "$.pe_ratio", "$.trailingPE"}
	pathEPS           = []string{"$.eps", "$.trailingEps"}
	pathDayHigh       = []string{"$.dayHigh", "$.day_high", "$.high"}
	pathDayLow        = []string{"$.dayLow", "$.day_low", "$.low"}
	pathOpen          = []string{"$.open"}
	pathPreviousClose = []string{"$.previousClose", "$.previous_close"}
	pathCurrency      = []string{"$.currency"}
	pathExchange      = []string{"$.exchange", "$.exch", "$.exchDisp"}
	pathWebsite       = []string{"$.website"}
	pathType          = []string{"$.type", "$.quoteType", "$.quote_type", "$.typeDisp"}
	pathSectorName    = []string{"$.name", "$.sector"}
	pathSectorSymbol  = []string{"$.symbol", "$.etf"}
	pathPerformance   = []string{"$.performance", "$.changePercent", "$.percent_change", "$.change_percent"}
	pathDate          = []string{"$.date", "$.Date", "$.datetime", "$.timestamp"}
	pathClose         = []string{"$.close", "$.Close", "$.adj_close"}

	pathListWrappers    = []string{"$.data", "$.items", "$.results", "$.quotes", "$.stocks"}
	pathHistoryWrappers = []string{"$.data", "$.history", "$.points", "$.prices"}
	pathObjectWrappers  = []string{"$.data", "$.quote"}
)

// lookup returns the first present, non-null value among paths
func lookup(doc any, paths []string) (any, bool) {
	for _, p := range paths {
		v, err := jsonpath.Get(p, doc)
		if err != nil {
			continue
		}
		// jsonpath may hand back a single answer wrapped in a list
		if list, ok := v.([]any); ok && len(list) == 1 {
			v = list[0]
		}
		if v == nil {
			continue
		}
		return v, true
	}
	return nil, false
}

func lookupString(doc any, paths []string) string {
	v, ok := lookup(doc, paths)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

func lookupDecimal(doc any, paths []string) (decimal.Decimal, bool) {
	v, ok := lookup(doc, paths)
	if !ok {
		return decimal.Zero, false
	}
	return toDecimal(v)
}

func lookupNullDecimal(doc any, paths []string) decimal.NullDecimal {
	d, ok := lookupDecimal(doc, paths)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

func lookupInt(doc any, paths []string) int64 {
	d, ok := lookupDecimal(doc, paths)
	if !ok {
		return 0
	}
	return d.IntPart()
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		s = strings.TrimSuffix(s, "%")
		if s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, "NaN") {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// rowsOf returns the list payload, accepting a bare array or one of the
// common wrapper keys.
func rowsOf(doc any, wrappers []string) ([]any, error) {
	if list, ok := doc.([]any); ok {
		return list, nil
	}
	for _, p := range wrappers {
		v, err := jsonpath.Get(p, doc)
		if err != nil {
			continue
		}
		if list, ok := v.([]any); ok {
			return list, nil
		}
	}
	return nil, fmt.Errorf("expected a list payload, got %T", doc)
}

// objectOf unwraps {"data": {...}} style envelopes around a single object
func objectOf(doc any) (map[string]any, error) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object payload, got %T", doc)
	}
	if _, ok := lookup(obj, pathSymbol); ok {
		return obj, nil
	}
	for _, p := range pathObjectWrappers {
		if v, err := jsonpath.Get(p, obj); err == nil {
			if inner, ok := v.(map[string]any); ok {
				return inner, nil
			}
		}
	}
	return obj, nil
}

// keepValid drops rows that fail validation, logging each one
func keepValid[T any](rows []T, kind string, logger *common.Logger) []T {
	out := make([]T, 0, len(rows))
	for i := range rows {
		if err := models.Validate(rows[i]); err != nil {
			logger.Warn().Str("kind", kind).Int("row", i).Err(err).Msg("Dropping invalid row")
			continue
		}
		out = append(out, rows[i])
	}
	return out
}

func normalizeSnapshots(doc any, logger *common.Logger) ([]models.MarketSnapshot, error) {
	rows, err := rowsOf(doc, pathListWrappers)
	if err != nil {
		return nil, err
	}
	out := make([]models.MarketSnapshot, 0, len(rows))
	for _, row := range rows {
		price, _ := lookupDecimal(row, pathPrice)
		change, _ := lookupDecimal(row, pathChange)
		pct, _ := lookupDecimal(row, pathChangePercent)
		out = append(out, models.MarketSnapshot{
			Symbol:        strings.ToUpper(lookupString(row, pathSymbol)),
			Name:          lookupString(row, pathName),
			Price:         price,
			Change:        change,
			ChangePercent: pct,
		})
	}
	return keepValid(out, "market_snapshot", logger), nil
}

func normalizeSectors(doc any, logger *common.Logger) ([]models.SectorPerformance, error) {
	rows, err := rowsOf(doc, pathListWrappers)
	if err != nil {
		return nil, err
	}
	out := make([]models.SectorPerformance, 0, len(rows))
	for _, row := range rows {
		perf, _ := lookupDecimal(row, pathPerformance)
		out = append(out, models.SectorPerformance{
			Name:        lookupString(row, pathSectorName),
			Symbol:      strings.ToUpper(lookupString(row, pathSectorSymbol)),
			Performance: perf,
		})
	}
	return keepValid(out, "sector", logger), nil
}

func normalizeMovers(doc any, logger *common.Logger) ([]models.Mover, error) {
	rows, err := rowsOf(doc, pathListWrappers)
	if err != nil {
		return nil, err
	}
	out := make([]models.Mover, 0, len(rows))
	for _, row := range rows {
		price, _ := lookupDecimal(row, pathPrice)
		change, _ := lookupDecimal(row, pathChange)
		pct, _ := lookupDecimal(row, pathChangePercent)
		out = append(out, models.Mover{
			Symbol:        strings.ToUpper(lookupString(row, pathSymbol)),
			Name:          lookupString(row, pathName),
			Price:         price,
			Change:        change,
			ChangePercent: pct,
			Volume:        lookupInt(row, pathVolume),
			Website:       lookupString(row, pathWebsite),
		})
	}
	return keepValid(out, "mover", logger), nil
}

func normalizeSearch(doc any, logger *common.Logger) ([]models.SearchResult, error) {
	rows, err := rowsOf(doc, pathListWrappers)
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.SearchResult{
			Symbol:   strings.ToUpper(lookupString(row, pathSymbol)),
			Name:     lookupString(row, pathName),
			Exchange: lookupString(row, pathExchange),
			Type:     strings.ToLower(lookupString(row, pathType)),
		})
	}
	return keepValid(out, "search_result", logger), nil
}

// normalizeQuote maps a raw quote. symbol fills in a payload without one.
// Timestamp is left for the caller to stamp.
func normalizeQuote(doc any, symbol string) (*models.StockQuote, error) {
	obj, err := objectOf(doc)
	if err != nil {
		return nil, err
	}

	price, ok := lookupDecimal(obj, pathPrice)
	if !ok {
		return nil, fmt.Errorf("quote has no price")
	}
	change, _ := lookupDecimal(obj, pathChange)
	pct, _ := lookupDecimal(obj, pathChangePercent)
	marketCap, _ := lookupDecimal(obj, pathMarketCap)
	dayHigh, _ := lookupDecimal(obj, pathDayHigh)
	dayLow, _ := lookupDecimal(obj, pathDayLow)
	open, _ := lookupDecimal(obj, pathOpen)
	prevClose, _ := lookupDecimal(obj, pathPreviousClose)

	q := &models.StockQuote{
		Symbol:        strings.ToUpper(lookupString(obj, pathSymbol)),
		Name:          lookupString(obj, pathName),
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Volume:        lookupInt(obj, pathVolume),
		MarketCap:     marketCap,
		PERatio:       lookupNullDecimal(obj, pathPERatio),
		EPS:           lookupNullDecimal(obj, pathEPS),
		DayHigh:       dayHigh,
		DayLow:        dayLow,
		Open:          open,
		PreviousClose: prevClose,
		Currency:      strings.ToUpper(lookupString(obj, pathCurrency)),
		Exchange:      lookupString(obj, pathExchange),
		Website:       lookupString(obj, pathWebsite),
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	if q.Currency == "" {
		q.Currency = models.CurrencyForExchange(q.Exchange)
	}

	if err := models.Validate(q); err != nil {
		return nil, fmt.Errorf("invalid quote: %w", err)
	}
	return q, nil
}

var historyDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07:00",
}

func parseHistoryDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		for _, layout := range historyDateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(d)); err == nil {
				return t.UTC(), true
			}
		}
	case json.Number, float64:
		n, ok := toDecimal(d)
		if !ok {
			return time.Time{}, false
		}
		secs := n.IntPart()
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), true
		}
		return time.Unix(secs, 0).UTC(), true
	}
	return time.Time{}, false
}

// normalizeHistory accepts {symbol, period, data: [...]} or a bare array.
// Points are sorted ascending by date; rows without a usable date are dropped.
func normalizeHistory(doc any, symbol string, period models.Period, logger *common.Logger) (*models.StockHistory, error) {
	rows, err := rowsOf(doc, pathHistoryWrappers)
	if err != nil {
		return nil, err
	}

	h := &models.StockHistory{
		Symbol: symbol,
		Period: period,
		Points: make([]models.HistoryPoint, 0, len(rows)),
	}
	if s := strings.ToUpper(lookupString(doc, pathSymbol)); s != "" {
		h.Symbol = s
	}
	if p := models.Period(lookupString(doc, []string{"$.period"})); p.Valid() {
		h.Period = p
	}

	for i, row := range rows {
		raw, ok := lookup(row, pathDate)
		if !ok {
			logger.Warn().Int("row", i).Str("symbol", h.Symbol).Msg("Dropping history row without date")
			continue
		}
		date, ok := parseHistoryDate(raw)
		if !ok {
			logger.Warn().Int("row", i).Str("symbol", h.Symbol).Msg("Dropping history row with unparseable date")
			continue
		}
		closePrice, ok := lookupDecimal(row, pathClose)
		if !ok {
			logger.Warn().Int("row", i).Str("symbol", h.Symbol).Msg("Dropping history row without close")
			continue
		}
		open, _ := lookupDecimal(row, []string{"$.open", "$.Open"})
		high, _ := lookupDecimal(row, []string{"$.high", "$.High"})
		low, _ := lookupDecimal(row, []string{"$.low", "$.Low"})
		h.Points = append(h.Points, models.HistoryPoint{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: lookupInt(row, []string{"$.volume", "$.Volume"}),
		})
	}

	slices.SortStableFunc(h.Points, func(a, b models.HistoryPoint) int {
		return a.Date.Compare(b.Date)
	})

	if err := models.Validate(h); err != nil {
		return nil, fmt.Errorf("invalid history: %w", err)
	}
	return h, nil
}
