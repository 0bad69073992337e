package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	for _, p := range Periods {
		got, err := ParsePeriod(" " + string(p) + " ")
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePeriod("bogus-period")
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestParseMoverTypeAndRegion(t *testing.T) {
	mt, err := ParseMoverType("Losers")
	require.NoError(t, err)
	assert.Equal(t, MoverLosers, mt)

	_, err = ParseMoverType("sideways")
	assert.ErrorIs(t, err, ErrInvalidMoverType)

	r, err := ParseRegion("india")
	require.NoError(t, err)
	assert.Equal(t, RegionIndia, r)

	r, err = ParseRegion("")
	require.NoError(t, err)
	assert.Equal(t, RegionUS, r)

	_, err = ParseRegion("mars")
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestNormalizeSymbol(t *testing.T) {
	s, err := NormalizeSymbol("  aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", s)

	_, err = NormalizeSymbol("   ")
	assert.ErrorIs(t, err, ErrEmptySymbol)
}

func TestValidate_ChangeSignMustMatch(t *testing.T) {
	ok := MarketSnapshot{
		Symbol:        "^GSPC",
		Price:         decimal.NewFromFloat(5000.12),
		Change:        decimal.NewFromFloat(-12.5),
		ChangePercent: decimal.NewFromFloat(-0.25),
	}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.ChangePercent = decimal.NewFromFloat(0.25)
	assert.Error(t, Validate(bad))

	flat := ok
	flat.Change = decimal.Zero
	assert.NoError(t, Validate(flat), "zero change accepts any percent")
}

func TestValidate_NegativePriceRejected(t *testing.T) {
	m := Mover{Symbol: "X", Price: decimal.NewFromInt(-1)}
	assert.Error(t, Validate(m))

	m.Price = decimal.NewFromInt(1)
	m.Volume = -5
	assert.Error(t, Validate(m))
}

func TestValidate_QuoteWithNullEarnings(t *testing.T) {
	q := StockQuote{
		Symbol:    "^NSEI",
		Price:     decimal.NewFromInt(22000),
		MarketCap: decimal.Zero,
	}
	assert.NoError(t, Validate(q))
	assert.False(t, q.PERatio.Valid)
}

func TestValidate_HistoryPeriod(t *testing.T) {
	h := StockHistory{Symbol: "AAPL", Period: Period1Y}
	assert.NoError(t, Validate(&h))

	h.Period = "2w"
	assert.Error(t, Validate(&h))
}

func TestStockQuote_InDayRange(t *testing.T) {
	q := StockQuote{
		Price:   decimal.NewFromInt(250),
		DayLow:  decimal.NewFromInt(245),
		DayHigh: decimal.NewFromInt(255),
	}
	assert.True(t, q.InDayRange())

	q.Price = decimal.NewFromInt(260)
	assert.False(t, q.InDayRange())
}

func TestLookupMarket(t *testing.T) {
	info, ok := LookupMarket("NMS", "")
	require.True(t, ok)
	assert.Equal(t, "NASDAQ", info.Name)
	assert.Equal(t, "NMS", info.Code)

	info, ok = LookupMarket("???", "INR")
	require.True(t, ok)
	assert.Equal(t, "NSE", info.Code)
	assert.Equal(t, "Asia/Kolkata", info.Timezone)

	_, ok = LookupMarket("", "XYZ")
	assert.False(t, ok)

	assert.Equal(t, "GBP", CurrencyForExchange("LSE"))
}

func TestAuthEvent_EventUser(t *testing.T) {
	u := &User{ID: "u1"}
	assert.Equal(t, u, AuthEvent{Type: AuthSignedIn, Session: &Session{User: u}}.EventUser())
	assert.Nil(t, AuthEvent{Type: AuthSignedOut, Session: &Session{User: u}}.EventUser())
	assert.Nil(t, AuthEvent{Type: AuthTokenRefreshed}.EventUser())
}
