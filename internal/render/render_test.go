package render

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/stores/market"
	"github.com/bobmcallan/tradeonly/internal/stores/stock"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tsla() *models.StockQuote {
	return &models.StockQuote{
		Symbol:        "TSLA",
		Name:          "Tesla, Inc.",
		Price:         d("250.00"),
		Change:        d("5.25"),
		ChangePercent: d("2.14"),
		Volume:        98_000_000,
		MarketCap:     d("795000000000"),
		EPS:           decimal.NewNullDecimal(d("3.12")),
		DayHigh:       d("252.10"),
		DayLow:        d("244.80"),
		Open:          d("245.00"),
		PreviousClose: d("244.75"),
		Currency:      "USD",
		Exchange:      "NMS",
		Timestamp:     time.Date(2024, 6, 28, 14, 5, 9, 0, time.UTC),
	}
}

func TestQuoteMarkdown(t *testing.T) {
	// Friday 10:00 in New York
	now := time.Date(2024, 6, 28, 14, 0, 0, 0, time.UTC)
	out := QuoteMarkdown(tsla(), now)

	assert.Contains(t, out, "# TSLA · Tesla, Inc.")
	assert.Contains(t, out, "**$250.00** +$5.25 (+2.14%)")
	assert.Contains(t, out, "| Market cap | 795.00B |")
	assert.Contains(t, out, "| P/E | n/a |")
	assert.Contains(t, out, "| EPS | 3.12 |")
	assert.Contains(t, out, "NASDAQ open")
	assert.Contains(t, out, "_Updated 14:05:09_")
}

func TestQuoteMarkdown_Nil(t *testing.T) {
	assert.Equal(t, "_No quote loaded._\n", QuoteMarkdown(nil, time.Now()))
}

func TestQuoteStateMarkdown(t *testing.T) {
	now := time.Now()

	out := QuoteStateMarkdown(stock.State{Symbol: "ZZZZ", NotFound: true, Error: "Stock ZZZZ not found"}, now)
	assert.Contains(t, out, "_Stock ZZZZ not found_")

	out = QuoteStateMarkdown(stock.State{Symbol: "TSLA", Loading: true}, now)
	assert.Contains(t, out, "_Loading..._")

	out = QuoteStateMarkdown(stock.State{Symbol: "TSLA", Quote: tsla(), PollFailures: 2}, now)
	assert.Contains(t, out, "$250.00")
	assert.Contains(t, out, "Refresh failing (2)")
}

func TestHistoryMarkdown(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 6, n, 0, 0, 0, 0, time.UTC) }
	h := &models.StockHistory{
		Symbol: "TSLA",
		Period: models.Period5D,
		Points: []models.HistoryPoint{
			{Date: day(24), Close: d("200"), Open: d("199"), High: d("201"), Low: d("198"), Volume: 1000},
			{Date: day(25), Close: d("210"), Open: d("200"), High: d("211"), Low: d("199"), Volume: 2000},
			{Date: day(26), Close: d("220"), Open: d("210"), High: d("221"), Low: d("209"), Volume: 3000},
		},
	}

	out := HistoryMarkdown(h, "USD", 2)
	assert.Contains(t, out, "## TSLA · 5d")
	assert.Contains(t, out, "2024-06-24 to 2024-06-26: +$20.00 (+10.00%)")
	assert.NotContains(t, out, "| 2024-06-24 |", "limit keeps the most recent bars")
	assert.Contains(t, out, "| 2024-06-26 | 210.00 | 221.00 | 209.00 | 220.00 | 3.00K |")

	assert.Equal(t, "_No history._\n", HistoryMarkdown(nil, "USD", 0))
}

func TestOverviewMarkdown_PerListStatus(t *testing.T) {
	st := market.State{
		Region: models.RegionUS,
		Overview: market.Slice[models.MarketSnapshot]{Items: []models.MarketSnapshot{
			{Symbol: "^GSPC", Name: "S&P 500", Price: d("5460.48"), Change: d("-22.39"), ChangePercent: d("-0.41")},
		}},
		Sectors: market.Slice[models.SectorPerformance]{Error: market.MsgSectorsFailed},
		Gainers: market.Slice[models.Mover]{Loading: true},
	}

	out := OverviewMarkdown(st)
	assert.Contains(t, out, "| ^GSPC | S&P 500 | 5460.48 | -$22.39 | -0.41% |")
	assert.Contains(t, out, "**Failed to fetch sector performance**")
	assert.Contains(t, out, "## Top Gainers\n\n_Loading..._")
}

func TestMoversMarkdown_IndiaUsesRupees(t *testing.T) {
	sl := market.Slice[models.Mover]{Items: []models.Mover{
		{Symbol: "RELIANCE.NS", Name: "Reliance", Price: d("2950.5"), ChangePercent: d("1.2"), Volume: 5_400_000},
	}}
	out := MoversMarkdown("Gainers", sl, currencyFor(models.RegionIndia))
	assert.Contains(t, out, "RELIANCE.NS")
	assert.Contains(t, out, "2,950.50")
	assert.Contains(t, out, "+1.20%")
	assert.Contains(t, out, "5.40M")
}

func TestSearchMarkdown(t *testing.T) {
	out := SearchMarkdown("tes", []models.SearchResult{{Symbol: "TSLA", Name: "Tesla | Inc", Exchange: "NASDAQ", Type: "equity"}})
	assert.Contains(t, out, `## Results for "tes"`)
	assert.Contains(t, out, `Tesla \| Inc`, "pipes are escaped inside cells")

	assert.Contains(t, SearchMarkdown("zz", nil), "_No matches._")
}

func TestWatchlistMarkdown(t *testing.T) {
	assert.Contains(t, WatchlistMarkdown(nil, nil), "empty")

	out := WatchlistMarkdown([]string{"TSLA", "AAPL"}, map[string]models.StockQuote{"TSLA": *tsla()})
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "| TSLA | Tesla, Inc. | $250.00 | +2.14% |", lines[4])
	assert.Equal(t, "| AAPL |  | - | - |", lines[5])
}

func TestRenderer_NoTTY(t *testing.T) {
	r, err := New(StyleNoTTY, 80)
	require.NoError(t, err)

	out, err := r.Render(QuoteMarkdown(tsla(), time.Now()))
	require.NoError(t, err)
	assert.Contains(t, out, "TSLA")
	assert.Contains(t, out, "$250.00")
}

func TestQuoteMarkdown_StaleAndOutOfRange(t *testing.T) {
	q := tsla()
	q.Price = d("260.00")

	out := QuoteMarkdown(q, q.Timestamp.Add(time.Minute))
	assert.Contains(t, out, "_Updated 14:05:09 (stale)_")
	assert.Contains(t, out, "outside the reported day range")
}

func TestLogoMarkdown(t *testing.T) {
	q := tsla()
	assert.Empty(t, LogoMarkdown(q, ""))

	q.Website = "https://www.tesla.com"
	assert.Equal(t, "[TSLA logo](https://img.logo.dev/www.tesla.com?token=pk)\n", LogoMarkdown(q, "pk"))
}
