// Package market caches the aggregate market lists shown on the dashboard.
package market

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/state"
)

// Messages recorded in Slice.Error
const (
	MsgOverviewFailed = "Failed to fetch market overview"
	MsgSectorsFailed  = "Failed to fetch sector performance"
	MsgGainersFailed  = "Failed to fetch top gainers"
	MsgMoversFailed   = "Failed to fetch market movers"
	MsgSectorFailed   = "Failed to fetch sector stocks"
)

// Slice is one independently loaded list
type Slice[T any] struct {
	Items   []T    `json:"items"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func (s Slice[T]) clone() Slice[T] {
	s.Items = slices.Clone(s.Items)
	return s
}

// State is the market snapshot delivered to subscribers
type State struct {
	Region   models.Region                            `json:"region"`
	Overview Slice[models.MarketSnapshot]             `json:"overview"`
	Sectors  Slice[models.SectorPerformance]          `json:"sectors"`
	Gainers  Slice[models.StockGainer]                `json:"gainers"`
	Movers   map[models.MoverType]Slice[models.Mover] `json:"movers"`
	BySector map[string]Slice[models.Mover]           `json:"bySector"`
}

func cloneState(s State) State {
	s.Overview = s.Overview.clone()
	s.Sectors = s.Sectors.clone()
	s.Gainers = s.Gainers.clone()
	s.Movers = maps.Clone(s.Movers)
	for k, v := range s.Movers {
		s.Movers[k] = v.clone()
	}
	s.BySector = maps.Clone(s.BySector)
	for k, v := range s.BySector {
		s.BySector[k] = v.clone()
	}
	return s
}

// Store caches the last successful fetch of each market list. A failure in
// one list never touches another.
type Store struct {
	api    interfaces.MarketDataAPI
	logger *common.Logger
	state  *state.Observable[State]

	seqMu sync.Mutex
	seqs  map[string]*state.Sequence
}

// Option configures the store
type Option func(*Store)

// WithRegion selects the initial region
func WithRegion(region models.Region) Option {
	return func(s *Store) {
		s.state.Update(func(st *State) bool {
			st.Region = region
			return true
		})
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store for the US region unless WithRegion says otherwise
func NewStore(api interfaces.MarketDataAPI, opts ...Option) *Store {
	s := &Store{
		api:    api,
		logger: common.NewSilentLogger(),
		state: state.NewObservable(State{
			Region:   models.RegionUS,
			Overview: Slice[models.MarketSnapshot]{Items: []models.MarketSnapshot{}},
			Sectors:  Slice[models.SectorPerformance]{Items: []models.SectorPerformance{}},
			Gainers:  Slice[models.StockGainer]{Items: []models.StockGainer{}},
			Movers:   map[models.MoverType]Slice[models.Mover]{},
			BySector: map[string]Slice[models.Mover]{},
		}, cloneState),
		seqs: map[string]*state.Sequence{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) seq(key string) *state.Sequence {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	q, ok := s.seqs[key]
	if !ok {
		q = &state.Sequence{}
		s.seqs[key] = q
	}
	return q
}

// SetRegion switches region. Region dependent lists are dropped and any
// in-flight fetch for the old region is discarded.
func (s *Store) SetRegion(region models.Region) {
	s.seqMu.Lock()
	for _, q := range s.seqs {
		q.Next()
	}
	s.seqMu.Unlock()

	s.state.Update(func(st *State) bool {
		if st.Region == region {
			return false
		}
		st.Region = region
		st.Overview = Slice[models.MarketSnapshot]{Items: []models.MarketSnapshot{}}
		st.Movers = map[models.MoverType]Slice[models.Mover]{}
		st.BySector = map[string]Slice[models.Mover]{}
		return true
	})
}

// Region returns the selected region
func (s *Store) Region() models.Region {
	return s.State().Region
}

// fetchInto runs call and writes its result into the slice addressed by
// read/write, provided no later fetch for key has been issued since.
func fetchInto[T any](ctx context.Context, s *Store, key, failMsg string,
	read func(*State) Slice[T], write func(*State, Slice[T]),
	call func(context.Context) ([]T, error)) error {

	q := s.seq(key)
	ticket := q.Next()

	s.state.Update(func(st *State) bool {
		sl := read(st)
		sl.Loading = true
		sl.Error = ""
		write(st, sl)
		return true
	})

	items, err := call(ctx)

	s.state.Update(func(st *State) bool {
		if !q.IsLatest(ticket) {
			return false
		}
		sl := read(st)
		if ctx.Err() != nil {
			if !sl.Loading {
				return false
			}
			sl.Loading = false
			write(st, sl)
			return true
		}
		sl.Loading = false
		if err != nil {
			sl.Items = []T{}
			sl.Error = failMsg
		} else {
			sl.Items = items
			sl.Error = ""
		}
		write(st, sl)
		return true
	})

	if err != nil {
		s.logger.Warn().Err(err).Str("list", key).Msg(failMsg)
		return err
	}
	if !q.IsLatest(ticket) {
		s.logger.Debug().Str("list", key).Msg("Discarded stale response")
	}
	return nil
}

// FetchMarketOverview loads the tracked indices for the selected region.
// On failure the list is emptied and Error records MsgOverviewFailed.
func (s *Store) FetchMarketOverview(ctx context.Context) error {
	region := s.Region()
	return fetchInto(ctx, s, "overview", MsgOverviewFailed,
		func(st *State) Slice[models.MarketSnapshot] { return st.Overview },
		func(st *State, sl Slice[models.MarketSnapshot]) { st.Overview = sl },
		func(ctx context.Context) ([]models.MarketSnapshot, error) {
			return s.api.GetMarketOverview(ctx, region)
		})
}

// FetchSectorPerformance loads sector performance in server order
func (s *Store) FetchSectorPerformance(ctx context.Context) error {
	return fetchInto(ctx, s, "sectors", MsgSectorsFailed,
		func(st *State) Slice[models.SectorPerformance] { return st.Sectors },
		func(st *State, sl Slice[models.SectorPerformance]) { st.Sectors = sl },
		s.api.GetSectorPerformance)
}

// FetchTopGainers loads the top gainers in server order
func (s *Store) FetchTopGainers(ctx context.Context) error {
	return fetchInto(ctx, s, "gainers", MsgGainersFailed,
		func(st *State) Slice[models.StockGainer] { return st.Gainers },
		func(st *State, sl Slice[models.StockGainer]) { st.Gainers = sl },
		s.api.GetTopGainers)
}

// FetchMovers loads the gainers or losers list for the selected region.
// An unknown type is rejected before any request.
func (s *Store) FetchMovers(ctx context.Context, moverType models.MoverType) error {
	t, err := models.ParseMoverType(string(moverType))
	if err != nil {
		return err
	}
	region := s.Region()
	return fetchInto(ctx, s, "movers:"+string(t), MsgMoversFailed,
		func(st *State) Slice[models.Mover] { return st.Movers[t] },
		func(st *State, sl Slice[models.Mover]) { st.Movers[t] = sl },
		func(ctx context.Context) ([]models.Mover, error) {
			return s.api.GetMovers(ctx, region, t)
		})
}

// SectorKey is the BySector key for a sector name
func SectorKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FetchSector loads the stocks of one sector, kept under SectorKey(name)
func (s *Store) FetchSector(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ErrEmptySector
	}
	key := SectorKey(name)
	region := s.Region()
	return fetchInto(ctx, s, "sector:"+key, MsgSectorFailed,
		func(st *State) Slice[models.Mover] { return st.BySector[key] },
		func(st *State, sl Slice[models.Mover]) { st.BySector[key] = sl },
		func(ctx context.Context) ([]models.Mover, error) {
			return s.api.GetSector(ctx, region, name)
		})
}

// LoadDashboard fetches the overview, sector performance and top gainers
// concurrently. Each list settles on its own; the first error is returned.
func (s *Store) LoadDashboard(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.FetchMarketOverview(ctx) })
	g.Go(func() error { return s.FetchSectorPerformance(ctx) })
	g.Go(func() error { return s.FetchTopGainers(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}
	return nil
}

// State returns the current snapshot
func (s *Store) State() State {
	return s.state.Get()
}

// Subscribe registers l for every change and returns its unsubscribe func
func (s *Store) Subscribe(l func(State)) func() {
	return s.state.Subscribe(l)
}
