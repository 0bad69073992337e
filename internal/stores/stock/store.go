// Package stock caches the single-symbol quote, history and search results.
// The store never schedules its own refreshes; see package poll.
package stock

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/tradeonly/internal/clients/marketapi"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/state"
)

// Messages recorded in the error fields
const (
	MsgQuoteFailed   = "Failed to fetch quote"
	MsgHistoryFailed = "Failed to fetch history"
	MsgSearchFailed  = "Failed to search stocks"
)

// DefaultBatchLimit bounds concurrent requests in FetchQuotes
const DefaultBatchLimit = 4

// State is the stock snapshot delivered to subscribers
type State struct {
	// Symbol is the symbol of the most recent FetchQuote
	Symbol       string             `json:"symbol"`
	Quote        *models.StockQuote `json:"quote"`
	Loading      bool               `json:"loading"`
	Error        string             `json:"error,omitempty"`
	NotFound     bool               `json:"notFound"`
	PollFailures int                `json:"pollFailures"`

	History        *models.StockHistory `json:"history"`
	HistorySymbol  string               `json:"historySymbol"`
	HistoryLoading bool                 `json:"historyLoading"`
	HistoryError   string               `json:"historyError,omitempty"`

	SearchQuery   string                `json:"searchQuery"`
	SearchResults []models.SearchResult `json:"searchResults"`
	Searching     bool                  `json:"searching"`
	SearchError   string                `json:"searchError,omitempty"`

	Batch        map[string]models.StockQuote `json:"batch"`
	BatchErrors  map[string]string            `json:"batchErrors,omitempty"`
	BatchLoading bool                         `json:"batchLoading"`
}

func cloneState(s State) State {
	if s.Quote != nil {
		q := *s.Quote
		s.Quote = &q
	}
	if s.History != nil {
		h := *s.History
		h.Points = slices.Clone(h.Points)
		s.History = &h
	}
	s.SearchResults = slices.Clone(s.SearchResults)
	s.Batch = maps.Clone(s.Batch)
	s.BatchErrors = maps.Clone(s.BatchErrors)
	return s
}

// Store caches stock data for the detail, search and watchlist views
type Store struct {
	api        interfaces.StockDataAPI
	logger     *common.Logger
	now        func() time.Time
	batchLimit int
	state      *state.Observable[State]

	quoteSeq   state.Sequence
	historySeq state.Sequence
	searchSeq  state.Sequence
	batchSeq   state.Sequence
}

// Option configures the store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the time source used to stamp quotes
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithBatchLimit bounds concurrent requests in FetchQuotes
func WithBatchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// NewStore creates an empty store
func NewStore(api interfaces.StockDataAPI, opts ...Option) *Store {
	s := &Store{
		api:        api,
		logger:     common.NewSilentLogger(),
		now:        time.Now,
		batchLimit: DefaultBatchLimit,
		state: state.NewObservable(State{
			SearchResults: []models.SearchResult{},
			Batch:         map[string]models.StockQuote{},
		}, cloneState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchQuote loads the quote for symbol. Switching symbol drops the cached
// quote at once. When a refresh of the displayed symbol fails the last good
// quote stays and only PollFailures moves.
func (s *Store) FetchQuote(ctx context.Context, symbol string) error {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	ticket := s.quoteSeq.Next()

	s.state.Update(func(st *State) bool {
		if st.Symbol != sym {
			st.Symbol = sym
			st.Quote = nil
			st.PollFailures = 0
		}
		if st.Quote != nil {
			// refresh of the displayed quote
			return false
		}
		st.Loading = true
		st.Error = ""
		st.NotFound = false
		return true
	})

	quote, err := s.api.GetQuote(ctx, sym)

	stale := false
	s.state.Update(func(st *State) bool {
		if !s.quoteSeq.IsLatest(ticket) || st.Symbol != sym {
			stale = true
			return false
		}
		if ctx.Err() != nil {
			if !st.Loading {
				return false
			}
			st.Loading = false
			return true
		}

		st.Loading = false
		if err == nil {
			quote.Timestamp = s.now()
			st.Quote = quote
			st.Error = ""
			st.NotFound = false
			st.PollFailures = 0
			return true
		}

		if st.Quote != nil && st.Quote.Symbol == sym {
			st.PollFailures++
			return true
		}
		st.NotFound = marketapi.IsNotFound(err)
		if st.NotFound {
			st.Error = fmt.Sprintf("Stock %s not found", sym)
		} else {
			st.Error = MsgQuoteFailed
		}
		return true
	})

	if stale {
		s.logger.Debug().Str("symbol", sym).Msg("Discarded stale quote response")
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", sym).Msg(MsgQuoteFailed)
		return err
	}
	return nil
}

// FetchHistory loads bars for symbol over period. The period is checked
// before any request. Failures only set HistoryError.
func (s *Store) FetchHistory(ctx context.Context, symbol string, period models.Period) error {
	if !period.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidPeriod, period)
	}
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	ticket := s.historySeq.Next()

	s.state.Update(func(st *State) bool {
		if st.HistorySymbol != sym {
			st.HistorySymbol = sym
			st.History = nil
		}
		st.HistoryLoading = true
		st.HistoryError = ""
		return true
	})

	history, err := s.api.GetHistory(ctx, sym, period)

	s.state.Update(func(st *State) bool {
		if !s.historySeq.IsLatest(ticket) || st.HistorySymbol != sym {
			return false
		}
		st.HistoryLoading = false
		if ctx.Err() != nil {
			return true
		}
		if err != nil {
			st.HistoryError = MsgHistoryFailed
			return true
		}
		st.History = history
		return true
	})

	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", sym).Str("period", string(period)).Msg(MsgHistoryFailed)
		return err
	}
	return nil
}

// SearchStocks replaces the search results. A blank query clears them
// without a request.
func (s *Store) SearchStocks(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		s.ClearSearchResults()
		return nil
	}
	ticket := s.searchSeq.Next()

	s.state.Update(func(st *State) bool {
		st.SearchQuery = query
		st.Searching = true
		st.SearchError = ""
		return true
	})

	results, err := s.api.SearchStocks(ctx, query)

	s.state.Update(func(st *State) bool {
		if !s.searchSeq.IsLatest(ticket) {
			return false
		}
		st.Searching = false
		if ctx.Err() != nil {
			return true
		}
		if err != nil {
			st.SearchResults = []models.SearchResult{}
			st.SearchError = MsgSearchFailed
			return true
		}
		st.SearchResults = results
		return true
	})

	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg(MsgSearchFailed)
		return err
	}
	return nil
}

// ClearSearchResults empties the results and discards any search in flight
func (s *Store) ClearSearchResults() {
	s.searchSeq.Next()
	s.state.Update(func(st *State) bool {
		if st.SearchQuery == "" && len(st.SearchResults) == 0 && !st.Searching && st.SearchError == "" {
			return false
		}
		st.SearchQuery = ""
		st.SearchResults = []models.SearchResult{}
		st.Searching = false
		st.SearchError = ""
		return true
	})
}

// FetchQuotes loads quotes for the watchlist page into Batch, keyed by
// symbol. A symbol whose request fails keeps its previous entry and is
// listed in BatchErrors. The single quote state is untouched.
func (s *Store) FetchQuotes(ctx context.Context, symbols []string) error {
	var wanted []string
	for _, raw := range symbols {
		sym, err := models.NormalizeSymbol(raw)
		if err != nil || slices.Contains(wanted, sym) {
			continue
		}
		wanted = append(wanted, sym)
	}
	ticket := s.batchSeq.Next()

	s.state.Update(func(st *State) bool {
		st.BatchLoading = true
		return true
	})

	var mu sync.Mutex
	quotes := make(map[string]models.StockQuote, len(wanted))
	failures := map[string]error{}

	g := new(errgroup.Group)
	g.SetLimit(s.batchLimit)
	for _, sym := range wanted {
		g.Go(func() error {
			q, err := s.api.GetQuote(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[sym] = err
				return nil
			}
			q.Timestamp = s.now()
			quotes[sym] = *q
			return nil
		})
	}
	g.Wait()

	s.state.Update(func(st *State) bool {
		if !s.batchSeq.IsLatest(ticket) {
			return false
		}
		st.BatchLoading = false
		if ctx.Err() != nil {
			return true
		}
		batch := make(map[string]models.StockQuote, len(wanted))
		batchErrors := map[string]string{}
		for _, sym := range wanted {
			if q, ok := quotes[sym]; ok {
				batch[sym] = q
				continue
			}
			if prev, ok := st.Batch[sym]; ok {
				batch[sym] = prev
			}
			batchErrors[sym] = MsgQuoteFailed
		}
		st.Batch = batch
		st.BatchErrors = batchErrors
		return true
	})

	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failures))
	for _, sym := range wanted {
		if err, ok := failures[sym]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
		}
	}
	s.logger.Warn().Int("failed", len(errs)).Int("requested", len(wanted)).Msg("Some watchlist quotes failed")
	return errors.Join(errs...)
}

// State returns the current snapshot
func (s *Store) State() State {
	return s.state.Get()
}

// Subscribe registers l for every change and returns its unsubscribe func
func (s *Store) Subscribe(l func(State)) func() {
	return s.state.Subscribe(l)
}
