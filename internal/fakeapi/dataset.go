package fakeapi

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/tradeonly/internal/models"
)

// Row is one raw JSON object as the backend would send it
type Row = map[string]any

// Dataset is the in-memory market data served by the fixture API. Quotes are
// stored snake_cased, matching the production backend.
type Dataset struct {
	mu       sync.RWMutex
	overview map[models.Region][]Row
	sectors  []Row
	gainers  []Row
	movers   map[models.Region]map[models.MoverType][]Row
	bySector map[models.Region]map[string][]Row
	quotes   map[string]Row
	anchor   time.Time
}

// NewDataset returns an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		overview: map[models.Region][]Row{},
		movers:   map[models.Region]map[models.MoverType][]Row{},
		bySector: map[models.Region]map[string][]Row{},
		quotes:   map[string]Row{},
		anchor:   time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC),
	}
}

func quote(symbol, name string, price, change, pct float64, volume int64, exchange, currency, website string) Row {
	return Row{
		"symbol":         symbol,
		"name":           name,
		"price":          price,
		"change":         change,
		"percent_change": pct,
		"volume":         volume,
		"market_cap":     0,
		"pe_ratio":       nil,
		"eps":            nil,
		"day_high":       round2(price * 1.01),
		"day_low":        round2(price * 0.99),
		"open":           round2(price - change/2),
		"previous_close": round2(price - change),
		"currency":       currency,
		"exchange":       exchange,
		"website":        website,
	}
}

func withEarnings(r Row, marketCap, pe, eps float64) Row {
	r["market_cap"] = marketCap
	r["pe_ratio"] = pe
	r["eps"] = eps
	return r
}

func moverRow(q Row) Row {
	return Row{
		"symbol":         q["symbol"],
		"name":           q["name"],
		"price":          q["price"],
		"change":         q["change"],
		"percent_change": q["percent_change"],
		"volume":         q["volume"],
		"website":        q["website"],
	}
}

func snapshotRow(symbol, name string, price, change, pct float64) Row {
	return Row{"symbol": symbol, "name": name, "price": price, "change": change, "percent_change": pct}
}

// DefaultDataset returns a seeded dataset covering US and Indian markets
func DefaultDataset() *Dataset {
	d := NewDataset()

	aapl := withEarnings(quote("AAPL", "Apple Inc.", 210.62, 2.14, 1.03, 58210000, "NMS", "USD", "https://www.apple.com"), 3.23e12, 32.7, 6.44)
	msft := withEarnings(quote("MSFT", "Microsoft Corporation", 446.95, -3.1, -0.69, 19870000, "NMS", "USD", "https://www.microsoft.com"), 3.32e12, 38.6, 11.58)
	nvda := withEarnings(quote("NVDA", "NVIDIA Corporation", 123.54, 4.9, 4.13, 301000000, "NMS", "USD", "https://www.nvidia.com"), 3.04e12, 72.2, 1.71)
	tsla := withEarnings(quote("TSLA", "Tesla, Inc.", 250.00, 6.25, 2.56, 95000000, "NMS", "USD", "https://www.tesla.com"), 7.97e11, 63.1, 3.96)
	amd := withEarnings(quote("AMD", "Advanced Micro Devices, Inc.", 162.21, 5.4, 3.44, 48000000, "NMS", "USD", "https://www.amd.com"), 2.62e11, 238.5, 0.68)
	intc := quote("INTC", "Intel Corporation", 30.97, -1.12, -3.49, 61000000, "NMS", "USD", "https://www.intel.com")
	intc["market_cap"] = 1.32e11
	ba := withEarnings(quote("BA", "The Boeing Company", 182.01, -4.35, -2.33, 7400000, "NYQ", "USD", "https://www.boeing.com"), 1.11e11, -49.9, -3.65)
	xom := withEarnings(quote("XOM", "Exxon Mobil Corporation", 115.12, 0.84, 0.74, 15000000, "NYQ", "USD", "https://corporate.exxonmobil.com"), 5.11e11, 14.1, 8.17)
	reliance := withEarnings(quote("RELIANCE.NS", "Reliance Industries Limited", 3130.8, -12.45, -0.4, 5400000, "NSI", "INR", "https://www.ril.com"), 2.12e13, 29.8, 105.2)
	tcs := withEarnings(quote("TCS.NS", "Tata Consultancy Services Limited", 3849.1, 21.3, 0.56, 1900000, "NSI", "INR", "https://www.tcs.com"), 1.39e13, 30.9, 124.6)
	gspc := quote("^GSPC", "S&P 500", 5460.48, -22.39, -0.41, 3560000000, "SNP", "USD", "")
	nsei := quote("^NSEI", "NIFTY 50", 24010.6, -33.9, -0.14, 0, "NSI", "INR", "")

	for _, q := range []Row{aapl, msft, nvda, tsla, amd, intc, ba, xom, reliance, tcs, gspc, nsei} {
		d.quotes[q["symbol"].(string)] = q
	}
	d.quotes["^GSPC"]["type"] = "index"
	d.quotes["^NSEI"]["type"] = "index"

	d.overview[models.RegionUS] = []Row{
		snapshotRow("^GSPC", "S&P 500", 5460.48, -22.39, -0.41),
		snapshotRow("^DJI", "Dow Jones Industrial Average", 39118.86, -45.2, -0.12),
		snapshotRow("^IXIC", "NASDAQ Composite", 17732.6, -126.08, -0.71),
		snapshotRow("^RUT", "Russell 2000", 2047.69, 13.65, 0.67),
	}
	d.overview[models.RegionIndia] = []Row{
		snapshotRow("^NSEI", "NIFTY 50", 24010.6, -33.9, -0.14),
		snapshotRow("^BSESN", "S&P BSE SENSEX", 79032.73, -210.45, -0.27),
		snapshotRow("^NSEBANK", "NIFTY BANK", 52342.25, -469.05, -0.89),
	}

	d.sectors = []Row{
		{"name": "Technology", "symbol": "XLK", "performance": 1.24},
		{"name": "Healthcare", "symbol": "XLV", "performance": -0.31},
		{"name": "Financials", "symbol": "XLF", "performance": 0.18},
		{"name": "Energy", "symbol": "XLE", "performance": 0.74},
		{"name": "Consumer Discretionary", "symbol": "XLY", "performance": -0.52},
	}

	d.gainers = []Row{moverRow(nvda), moverRow(amd), moverRow(tsla), moverRow(aapl)}

	d.movers[models.RegionUS] = map[models.MoverType][]Row{
		models.MoverGainers: {moverRow(nvda), moverRow(amd), moverRow(tsla)},
		models.MoverLosers:  {moverRow(intc), moverRow(ba), moverRow(msft)},
	}
	d.movers[models.RegionIndia] = map[models.MoverType][]Row{
		models.MoverGainers: {moverRow(tcs)},
		models.MoverLosers:  {moverRow(reliance)},
	}

	d.bySector[models.RegionUS] = map[string][]Row{
		"technology":  {moverRow(aapl), moverRow(msft), moverRow(nvda), moverRow(amd), moverRow(intc)},
		"energy":      {moverRow(xom)},
		"industrials": {moverRow(ba)},
	}
	d.bySector[models.RegionIndia] = map[string][]Row{
		"energy":     {moverRow(reliance)},
		"technology": {moverRow(tcs)},
	}
	return d
}

// SetQuote replaces the raw quote payload for a symbol
func (d *Dataset) SetQuote(symbol string, row Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quotes[strings.ToUpper(symbol)] = row
}

// SetPrice moves an existing quote to price. Unknown symbols are created.
func (d *Dataset) SetPrice(symbol string, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sym := strings.ToUpper(symbol)
	q, ok := d.quotes[sym]
	if !ok {
		q = quote(sym, sym, price, 0, 0, 0, "", "USD", "")
	}
	q["price"] = price
	d.quotes[sym] = q
}

// RemoveQuote makes the symbol unknown
func (d *Dataset) RemoveQuote(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.quotes, strings.ToUpper(symbol))
}

// SetOverview replaces the overview rows for a region
func (d *Dataset) SetOverview(region models.Region, rows []Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overview[region] = rows
}

// SetGainers replaces the top gainers rows
func (d *Dataset) SetGainers(rows []Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gainers = rows
}

// SetSectors replaces the sector performance rows
func (d *Dataset) SetSectors(rows []Row) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sectors = rows
}

func copyRows(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		cp := make(Row, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func (d *Dataset) getOverview(region models.Region) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyRows(d.overview[region])
}

func (d *Dataset) getSectors() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyRows(d.sectors)
}

func (d *Dataset) getGainers() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyRows(d.gainers)
}

func (d *Dataset) getMovers(region models.Region, t models.MoverType) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyRows(d.movers[region][t])
}

func (d *Dataset) getSector(region models.Region, name string) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyRows(d.bySector[region][strings.ToLower(name)])
}

func (d *Dataset) getQuote(symbol string) (Row, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	q, ok := d.quotes[strings.ToUpper(symbol)]
	if !ok {
		return nil, false
	}
	return copyRows([]Row{q})[0], true
}

func (d *Dataset) search(query string) []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Row{}
	for sym, row := range d.quotes {
		name, _ := row["name"].(string)
		if !strings.Contains(strings.ToLower(sym), q) && !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		kind, _ := row["type"].(string)
		if kind == "" {
			kind = "equity"
		}
		out = append(out, Row{"symbol": sym, "name": name, "exchange": row["exchange"], "type": kind})
	}
	return out
}

var periodBars = map[models.Period]int{
	models.Period1D:  1,
	models.Period5D:  5,
	models.Period1M:  21,
	models.Period3M:  63,
	models.Period6M:  126,
	models.Period1Y:  252,
	models.PeriodYTD: 124,
	models.PeriodMax: 500,
}

// history builds deterministic weekday bars ending at the dataset anchor
func (d *Dataset) history(symbol string, period models.Period) ([]Row, bool) {
	q, ok := d.getQuote(symbol)
	if !ok {
		return nil, false
	}
	last, _ := q["price"].(float64)
	n := periodBars[period]

	dates := make([]time.Time, 0, n)
	for day := d.anchor; len(dates) < n; day = day.AddDate(0, 0, -1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, day)
	}

	rows := make([]Row, 0, n)
	for i := n - 1; i >= 0; i-- {
		drift := 1 + 0.02*math.Sin(float64(i)/3)
		closePrice := round2(last * drift)
		rows = append(rows, Row{
			"date":   dates[i].Format("2006-01-02"),
			"open":   round2(closePrice * 0.995),
			"high":   round2(closePrice * 1.01),
			"low":    round2(closePrice * 0.99),
			"close":  closePrice,
			"volume": 1000000 + int64(i)*1000,
		})
	}
	return rows, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
