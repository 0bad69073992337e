package stock

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tradeonly/internal/clients/marketapi"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/fakeapi"
	"github.com/bobmcallan/tradeonly/internal/models"
)

var fixedNow = time.Date(2024, 6, 28, 15, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) (*Store, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := marketapi.NewClient(marketapi.WithBaseURL(srv.URL), marketapi.WithRateLimit(0))
	store := NewStore(client,
		WithLogger(common.NewSilentLogger()),
		WithClock(func() time.Time { return fixedNow }))
	return store, fake
}

func TestFetchQuote_StampsStoreClock(t *testing.T) {
	store, _ := newFixture(t)

	require.NoError(t, store.FetchQuote(context.Background(), "aapl"))

	st := store.State()
	require.NotNil(t, st.Quote)
	assert.Equal(t, "AAPL", st.Quote.Symbol)
	assert.Equal(t, fixedNow, st.Quote.Timestamp)
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestFetchQuote_PollFailureKeepsLastGoodQuote(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.FetchQuote(ctx, "TSLA"))
	require.True(t, store.State().Quote.Price.Equal(decimal.RequireFromString("250.00")))

	fake.FailNext("/api/stock/quote/TSLA", http.StatusServiceUnavailable)
	require.Error(t, store.FetchQuote(ctx, "TSLA"))

	st := store.State()
	require.NotNil(t, st.Quote)
	assert.True(t, st.Quote.Price.Equal(decimal.RequireFromString("250.00")), "price = %s", st.Quote.Price)
	assert.Empty(t, st.Error, "poll failure sets no page error")
	assert.False(t, st.NotFound)
	assert.Equal(t, 1, st.PollFailures)

	require.NoError(t, store.FetchQuote(ctx, "TSLA"))
	assert.Zero(t, store.State().PollFailures)
}

func TestFetchQuote_FirstLoadNotFound(t *testing.T) {
	store, _ := newFixture(t)

	err := store.FetchQuote(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, marketapi.IsNotFound(err))

	st := store.State()
	assert.Nil(t, st.Quote)
	assert.True(t, st.NotFound)
	assert.Equal(t, "Stock ZZZZ not found", st.Error)
	assert.False(t, st.Loading)
}

func TestFetchQuote_FirstLoadFailure(t *testing.T) {
	store, fake := newFixture(t)
	fake.FailNext("/api/stock/quote/MSFT", http.StatusInternalServerError)

	require.Error(t, store.FetchQuote(context.Background(), "MSFT"))

	st := store.State()
	assert.Equal(t, MsgQuoteFailed, st.Error)
	assert.False(t, st.NotFound)
	assert.Zero(t, st.PollFailures)
}

// gatedStockAPI blocks GetQuote per symbol until released
type gatedStockAPI struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started map[string]chan struct{}
}

func newGatedStockAPI(symbols ...string) *gatedStockAPI {
	g := &gatedStockAPI{gates: map[string]chan struct{}{}, started: map[string]chan struct{}{}}
	for _, sym := range symbols {
		g.gates[sym] = make(chan struct{})
		g.started[sym] = make(chan struct{})
	}
	return g
}

func (g *gatedStockAPI) GetQuote(ctx context.Context, symbol string) (*models.StockQuote, error) {
	g.mu.Lock()
	gate, started := g.gates[symbol], g.started[symbol]
	g.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return &models.StockQuote{Symbol: symbol, Price: decimal.NewFromInt(100)}, nil
}

func (g *gatedStockAPI) GetHistory(context.Context, string, models.Period) (*models.StockHistory, error) {
	return nil, errors.New("not used")
}

func (g *gatedStockAPI) SearchStocks(context.Context, string) ([]models.SearchResult, error) {
	return nil, errors.New("not used")
}

func TestFetchQuote_SymbolSwitchRace(t *testing.T) {
	for _, first := range []string{"AAPL", "MSFT"} {
		t.Run(first+" settles first", func(t *testing.T) {
			api := newGatedStockAPI("AAPL", "MSFT")
			store := NewStore(api)
			ctx := context.Background()

			done := map[string]chan error{"AAPL": make(chan error, 1), "MSFT": make(chan error, 1)}
			go func() { done["AAPL"] <- store.FetchQuote(ctx, "AAPL") }()
			<-api.started["AAPL"]
			go func() { done["MSFT"] <- store.FetchQuote(ctx, "MSFT") }()
			<-api.started["MSFT"]

			st := store.State()
			assert.Equal(t, "MSFT", st.Symbol)
			assert.Nil(t, st.Quote)
			assert.True(t, st.Loading)

			second := "AAPL"
			if first == "AAPL" {
				second = "MSFT"
			}
			close(api.gates[first])
			require.NoError(t, <-done[first])
			if q := store.State().Quote; q != nil {
				assert.Equal(t, "MSFT", q.Symbol)
			}
			close(api.gates[second])
			require.NoError(t, <-done[second])

			st = store.State()
			require.NotNil(t, st.Quote)
			assert.Equal(t, "MSFT", st.Quote.Symbol)
			assert.False(t, st.Loading)
		})
	}
}

func TestFetchHistory_InvalidPeriodMakesNoCall(t *testing.T) {
	store, fake := newFixture(t)

	err := store.FetchHistory(context.Background(), "AAPL", "bogus-period")
	assert.ErrorIs(t, err, models.ErrInvalidPeriod)
	assert.Zero(t, fake.TotalCalls("/api"))
	assert.Nil(t, store.State().History)
}

func TestFetchHistory_FailureDoesNotSetPageError(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.FetchHistory(ctx, "AAPL", models.Period5D))
	st := store.State()
	require.NotNil(t, st.History)
	assert.Len(t, st.History.Points, 5)
	assert.Equal(t, models.Period5D, st.History.Period)

	fake.FailNext("/api/stock/history/AAPL", http.StatusBadGateway)
	require.Error(t, store.FetchHistory(ctx, "AAPL", models.Period1M))

	st = store.State()
	assert.Equal(t, MsgHistoryFailed, st.HistoryError)
	assert.Empty(t, st.Error)
	assert.NotNil(t, st.History, "same symbol keeps its last bars")

	require.NoError(t, store.FetchHistory(ctx, "MSFT", models.Period1D))
	st = store.State()
	assert.Equal(t, "MSFT", st.History.Symbol)
	assert.Empty(t, st.HistoryError)
}

func TestSearchStocks(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.SearchStocks(ctx, "   "))
	assert.Empty(t, store.State().SearchResults)
	assert.Zero(t, fake.TotalCalls("/api"))

	require.NoError(t, store.SearchStocks(ctx, "micro"))
	st := store.State()
	require.NotEmpty(t, st.SearchResults)
	assert.Equal(t, "micro", st.SearchQuery)

	require.NoError(t, store.SearchStocks(ctx, "tesla"))
	st = store.State()
	require.Len(t, st.SearchResults, 1)
	assert.Equal(t, "TSLA", st.SearchResults[0].Symbol)

	store.ClearSearchResults()
	st = store.State()
	assert.Empty(t, st.SearchResults)
	assert.Empty(t, st.SearchQuery)
}

func TestFetchQuotes_BatchKeepsSingleQuoteUntouched(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.FetchQuote(ctx, "TSLA"))

	err := store.FetchQuotes(ctx, []string{"AAPL", "msft", "AAPL", "ZZZZ"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZZZZ")

	st := store.State()
	assert.Len(t, st.Batch, 2)
	assert.Equal(t, fixedNow, st.Batch["MSFT"].Timestamp)
	assert.Equal(t, MsgQuoteFailed, st.BatchErrors["ZZZZ"])
	assert.Equal(t, "TSLA", st.Quote.Symbol)
	assert.Equal(t, 1, fake.Calls("/api/stock/quote/AAPL"))

	fake.FailNext("/api/stock/quote/AAPL", http.StatusServiceUnavailable)
	require.Error(t, store.FetchQuotes(ctx, []string{"AAPL", "MSFT"}))
	st = store.State()
	assert.Contains(t, st.Batch, "AAPL", "failed symbol keeps its previous quote")
	assert.NotContains(t, st.Batch, "ZZZZ")
}
