package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/format"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/stores/market"
	"github.com/bobmcallan/tradeonly/internal/stores/stock"
)

type align int

const (
	left align = iota
	right
)

type table struct {
	header []string
	align  []align
	rows   [][]string
}

func (t table) write(w io.Writer) {
	cell := func(s string) string { return strings.ReplaceAll(s, "|", `\|`) }

	cells := make([]string, len(t.header))
	for i, h := range t.header {
		cells[i] = cell(h)
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))

	seps := make([]string, len(t.header))
	for i := range t.header {
		seps[i] = "---"
		if i < len(t.align) && t.align[i] == right {
			seps[i] = "--:"
		}
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cell(c)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	fmt.Fprintln(w)
}

func nullable(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return d.Decimal.StringFixed(2)
}

// QuoteMarkdown renders a quote card. now is used for the market status line.
func QuoteMarkdown(q *models.StockQuote, now time.Time) string {
	var b strings.Builder
	if q == nil {
		b.WriteString("_No quote loaded._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "# %s · %s\n\n", q.Symbol, q.Name)
	fmt.Fprintf(&b, "**%s** %s (%s)\n\n",
		format.Currency(q.Price, q.Currency),
		format.SignedCurrency(q.Change, q.Currency),
		format.SignedPercent(q.ChangePercent))

	table{
		header: []string{"Field", "Value"},
		align:  []align{left, right},
		rows: [][]string{
			{"Open", format.Currency(q.Open, q.Currency)},
			{"Previous close", format.Currency(q.PreviousClose, q.Currency)},
			{"Day range", format.Currency(q.DayLow, q.Currency) + " - " + format.Currency(q.DayHigh, q.Currency)},
			{"Volume", format.Compact(decimal.NewFromInt(q.Volume))},
			{"Market cap", format.Compact(q.MarketCap)},
			{"P/E", nullable(q.PERatio)},
			{"EPS", nullable(q.EPS)},
		},
	}.write(&b)

	if info, ok := format.MarketInfoFor(q.Exchange, q.Currency); ok {
		fmt.Fprintf(&b, "%s · %s %s-%s\n\n", format.MarketStatus(info, now), info.Timezone, info.OpenTime, info.CloseTime)
	}
	if !q.InDayRange() {
		b.WriteString("_Price is outside the reported day range._\n\n")
	}
	if !q.Timestamp.IsZero() {
		stale := ""
		if !common.IsFreshAt(q.Timestamp, now, common.FreshnessQuote) {
			stale = " (stale)"
		}
		fmt.Fprintf(&b, "_Updated %s%s_\n", q.Timestamp.Format("15:04:05"), stale)
	}
	return b.String()
}

// LogoMarkdown links the company logo. It is empty without a logo token.
func LogoMarkdown(q *models.StockQuote, token string) string {
	if q == nil || token == "" {
		return ""
	}
	logo, ok := format.LogoURL(q.Website, q.Symbol, token)
	if !ok {
		return ""
	}
	return fmt.Sprintf("[%s logo](%s)\n", q.Symbol, logo)
}

// QuoteStateMarkdown renders the stock store's quote view including its
// loading and error states.
func QuoteStateMarkdown(st stock.State, now time.Time) string {
	switch {
	case st.NotFound:
		return fmt.Sprintf("# %s\n\n_%s_\n", st.Symbol, st.Error)
	case st.Error != "":
		return fmt.Sprintf("# %s\n\n**%s**\n", st.Symbol, st.Error)
	case st.Quote == nil && st.Loading:
		return fmt.Sprintf("# %s\n\n_Loading..._\n", st.Symbol)
	}
	out := QuoteMarkdown(st.Quote, now)
	if st.PollFailures > 0 {
		out += fmt.Sprintf("\n_Refresh failing (%d), showing last good quote_\n", st.PollFailures)
	}
	return out
}

// HistoryMarkdown summarises bars and lists the most recent ones
func HistoryMarkdown(h *models.StockHistory, currency string, limit int) string {
	var b strings.Builder
	if h == nil || len(h.Points) == 0 {
		b.WriteString("_No history._\n")
		return b.String()
	}

	first := h.Points[0]
	last, _ := h.Latest()
	change := last.Close.Sub(first.Close)
	pct := decimal.Zero
	if !first.Close.IsZero() {
		pct = change.Div(first.Close).Mul(decimal.NewFromInt(100))
	}

	fmt.Fprintf(&b, "## %s · %s\n\n", h.Symbol, h.Period)
	fmt.Fprintf(&b, "%s to %s: %s (%s)\n\n",
		first.Date.Format(time.DateOnly), last.Date.Format(time.DateOnly),
		format.SignedCurrency(change, currency), format.SignedPercent(pct))

	points := h.Points
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	t := table{
		header: []string{"Date", "Open", "High", "Low", "Close", "Volume"},
		align:  []align{left, right, right, right, right, right},
	}
	for _, p := range points {
		t.rows = append(t.rows, []string{
			p.Date.Format(time.DateOnly),
			p.Open.StringFixed(2), p.High.StringFixed(2), p.Low.StringFixed(2), p.Close.StringFixed(2),
			format.Compact(decimal.NewFromInt(p.Volume)),
		})
	}
	t.write(&b)
	return b.String()
}

func currencyFor(region models.Region) string {
	if region == models.RegionIndia {
		return "INR"
	}
	return "USD"
}

func sliceStatus[T any](b *strings.Builder, sl market.Slice[T]) bool {
	switch {
	case sl.Error != "":
		fmt.Fprintf(b, "**%s**\n\n", sl.Error)
		return false
	case sl.Loading && len(sl.Items) == 0:
		b.WriteString("_Loading..._\n\n")
		return false
	case len(sl.Items) == 0:
		b.WriteString("_Nothing to show._\n\n")
		return false
	}
	return true
}

// MoversMarkdown renders a mover list under title
func MoversMarkdown(title string, sl market.Slice[models.Mover], currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	if !sliceStatus(&b, sl) {
		return b.String()
	}
	t := table{
		header: []string{"Symbol", "Name", "Price", "Change", "Volume"},
		align:  []align{left, left, right, right, right},
	}
	for _, m := range sl.Items {
		t.rows = append(t.rows, []string{
			m.Symbol, m.Name,
			format.Currency(m.Price, currency),
			format.SignedPercent(m.ChangePercent),
			format.Compact(decimal.NewFromInt(m.Volume)),
		})
	}
	t.write(&b)
	return b.String()
}

// OverviewMarkdown renders the dashboard: indices, sectors and top gainers
func OverviewMarkdown(st market.State) string {
	var b strings.Builder
	currency := currencyFor(st.Region)

	b.WriteString("# Market Overview\n\n")
	if sliceStatus(&b, st.Overview) {
		t := table{
			header: []string{"Index", "Name", "Price", "Change", "%"},
			align:  []align{left, left, right, right, right},
		}
		for _, s := range st.Overview.Items {
			t.rows = append(t.rows, []string{
				s.Symbol, s.Name,
				s.Price.StringFixed(2),
				format.SignedCurrency(s.Change, currency),
				format.SignedPercent(s.ChangePercent),
			})
		}
		t.write(&b)
	}

	b.WriteString("## Sector Performance\n\n")
	if sliceStatus(&b, st.Sectors) {
		t := table{header: []string{"Sector", "ETF", "Performance"}, align: []align{left, left, right}}
		for _, s := range st.Sectors.Items {
			t.rows = append(t.rows, []string{s.Name, s.Symbol, format.SignedPercent(s.Performance)})
		}
		t.write(&b)
	}

	b.WriteString(MoversMarkdown("Top Gainers", st.Gainers, currency))
	return b.String()
}

// SearchMarkdown renders search results for query
func SearchMarkdown(query string, results []models.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Results for %q\n\n", query)
	if len(results) == 0 {
		b.WriteString("_No matches._\n")
		return b.String()
	}
	t := table{header: []string{"Symbol", "Name", "Exchange", "Type"}}
	for _, r := range results {
		t.rows = append(t.rows, []string{r.Symbol, r.Name, r.Exchange, r.Type})
	}
	t.write(&b)
	return b.String()
}

// WatchlistMarkdown renders the watchlist with any batch quotes available
func WatchlistMarkdown(symbols []string, quotes map[string]models.StockQuote) string {
	var b strings.Builder
	b.WriteString("## Watchlist\n\n")
	if len(symbols) == 0 {
		b.WriteString("_Your watchlist is empty._\n")
		return b.String()
	}
	t := table{
		header: []string{"Symbol", "Name", "Price", "Change"},
		align:  []align{left, left, right, right},
	}
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			t.rows = append(t.rows, []string{sym, "", "-", "-"})
			continue
		}
		t.rows = append(t.rows, []string{
			sym, q.Name,
			format.Currency(q.Price, q.Currency),
			format.SignedPercent(q.ChangePercent),
		})
	}
	t.write(&b)
	return b.String()
}
