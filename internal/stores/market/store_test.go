package market

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

func newFixture(t *testing.T, opts ...Option) (*Store, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := marketapi.NewClient(marketapi.WithBaseURL(srv.URL), marketapi.WithRateLimit(0))
	opts = append([]Option{WithLogger(common.NewSilentLogger())}, opts...)
	return NewStore(client, opts...), fake
}

func TestLoadDashboard_FillsAllLists(t *testing.T) {
	store, _ := newFixture(t)

	require.NoError(t, store.LoadDashboard(context.Background()))

	st := store.State()
	require.NotEmpty(t, st.Overview.Items)
	assert.Equal(t, "^GSPC", st.Overview.Items[0].Symbol)
	assert.NotEmpty(t, st.Sectors.Items)
	require.NotEmpty(t, st.Gainers.Items)
	assert.Equal(t, "NVDA", st.Gainers.Items[0].Symbol, "server order is kept")
	assert.False(t, st.Overview.Loading || st.Sectors.Loading || st.Gainers.Loading)
}

func TestFetchMarketOverview_Idempotent(t *testing.T) {
	store, _ := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.FetchMarketOverview(ctx))
	first := store.State()
	require.NoError(t, store.FetchMarketOverview(ctx))

	assert.Equal(t, first, store.State())
}

func TestFetchMarketOverview_FailureEmptiesOnlyItsList(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.LoadDashboard(ctx))

	fake.FailNext("/api/market/overview", http.StatusServiceUnavailable)
	err := store.FetchMarketOverview(ctx)
	require.Error(t, err)

	st := store.State()
	assert.Equal(t, []models.MarketSnapshot{}, st.Overview.Items)
	assert.Equal(t, MsgOverviewFailed, st.Overview.Error)
	assert.False(t, st.Overview.Loading)
	assert.NotEmpty(t, st.Sectors.Items)
	assert.NotEmpty(t, st.Gainers.Items)
	assert.Empty(t, st.Gainers.Error)

	assert.Equal(t, 2, fake.Calls("/api/market/overview"), "no automatic retry")
}

func TestFetchMovers_RegionsAndValidation(t *testing.T) {
	store, fake := newFixture(t, WithRegion(models.RegionIndia))
	ctx := context.Background()

	err := store.FetchMovers(ctx, "sideways")
	assert.ErrorIs(t, err, models.ErrInvalidMoverType)
	assert.Zero(t, fake.TotalCalls("/api"))

	require.NoError(t, store.FetchMarketOverview(ctx))
	assert.Equal(t, 1, fake.Calls("/api/market/indian/overview"))
	assert.Equal(t, "^NSEI", store.State().Overview.Items[0].Symbol)

	store.SetRegion(models.RegionUS)
	assert.Empty(t, store.State().Overview.Items)

	require.NoError(t, store.FetchMovers(ctx, models.MoverLosers))
	losers := store.State().Movers[models.MoverLosers]
	require.NotEmpty(t, losers.Items)
	assert.Equal(t, "INTC", losers.Items[0].Symbol)
	assert.True(t, losers.Items[0].ChangePercent.IsNegative())
}

func TestFetchSector_KeyedByName(t *testing.T) {
	store, fake := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.FetchSector(ctx, "  "), models.ErrEmptySector)

	require.NoError(t, store.FetchSector(ctx, "Technology"))
	tech := store.State().BySector[SectorKey("Technology")]
	assert.Len(t, tech.Items, 5)
	assert.Equal(t, 1, fake.Calls("/api/market/sector/Technology"))

	fake.FailNext("/api/market/sector/Energy", http.StatusBadGateway)
	require.Error(t, store.FetchSector(ctx, "Energy"))

	st := store.State()
	assert.Equal(t, MsgSectorFailed, st.BySector["energy"].Error)
	assert.Len(t, st.BySector["technology"].Items, 5)
}

// gatedAPI returns canned overview lists; calls listed in gates block until released
type gatedAPI struct {
	mu    sync.Mutex
	calls int
	gates map[int]chan struct{}
	lists map[int][]models.MarketSnapshot
}

func (g *gatedAPI) GetMarketOverview(ctx context.Context, _ models.Region) ([]models.MarketSnapshot, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	gate := g.gates[n]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return g.lists[n], nil
}

func (g *gatedAPI) GetSectorPerformance(context.Context) ([]models.SectorPerformance, error) {
	return nil, errors.New("not used")
}

func (g *gatedAPI) GetTopGainers(context.Context) ([]models.Mover, error) {
	return nil, errors.New("not used")
}

func (g *gatedAPI) GetMovers(context.Context, models.Region, models.MoverType) ([]models.Mover, error) {
	return nil, errors.New("not used")
}

func (g *gatedAPI) GetSector(context.Context, models.Region, string) ([]models.Mover, error) {
	return nil, errors.New("not used")
}

func snapshot(symbol string, price int64) models.MarketSnapshot {
	return models.MarketSnapshot{Symbol: symbol, Price: decimal.NewFromInt(price)}
}

func TestFetchMarketOverview_StaleResponseIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	api := &gatedAPI{
		gates: map[int]chan struct{}{1: gate},
		lists: map[int][]models.MarketSnapshot{
			1: {snapshot("OLD", 1)},
			2: {snapshot("NEW", 2)},
		},
	}
	store := NewStore(api)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- store.FetchMarketOverview(ctx) }()
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.calls == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.FetchMarketOverview(ctx))
	close(gate)
	require.NoError(t, <-done)

	st := store.State()
	require.Len(t, st.Overview.Items, 1)
	assert.Equal(t, "NEW", st.Overview.Items[0].Symbol)
	assert.False(t, st.Overview.Loading)
}

func TestSubscribe_ReceivesLoadingThenResult(t *testing.T) {
	store, _ := newFixture(t)

	var mu sync.Mutex
	var loading []bool
	unsub := store.Subscribe(func(st State) {
		mu.Lock()
		loading = append(loading, st.Gainers.Loading)
		mu.Unlock()
	})

	require.NoError(t, store.FetchTopGainers(context.Background()))
	unsub()
	require.NoError(t, store.FetchTopGainers(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, loading)
}
