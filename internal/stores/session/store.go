// Package session holds the signed-in user and their watchlist.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/interfaces"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/state"
)

// State is the session snapshot delivered to subscribers
type State struct {
	User      *models.User `json:"user"`
	Watchlist []string     `json:"watchlist"`
	Loading   bool         `json:"loading"`
}

// IsAuthenticated reports whether a user is signed in
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

func cloneState(s State) State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	s.Watchlist = slices.Clone(s.Watchlist)
	if s.Watchlist == nil {
		s.Watchlist = []string{}
	}
	return s
}

// Store owns the session user and watchlist. Create one per process with
// NewStore and release it with Close.
type Store struct {
	auth   interfaces.AuthBackend
	events interfaces.AuthEventSource
	repo   interfaces.WatchlistRepository
	logger *common.Logger

	state   *state.Observable[State]
	symbols   state.KeyedMutex
	fetches   state.Sequence
	mutations mutationLog

	ctx    context.Context
	cancel context.CancelFunc

	initMu      sync.Mutex
	initialized bool
	closed      bool
	unsubscribe func()
}

// NewStore creates a store. events may be nil when no auth change stream is available.
func NewStore(auth interfaces.AuthBackend, events interfaces.AuthEventSource, repo interfaces.WatchlistRepository, logger *common.Logger) *Store {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		auth:   auth,
		events: events,
		repo:   repo,
		logger: logger,
		state:  state.NewObservable(State{Watchlist: []string{}, Loading: true}, cloneState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Init restores an existing session and subscribes to auth changes. Only
// the first call does any work; concurrent callers wait for it. Session
// failures leave the store signed out and are not returned.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized || s.closed {
		return nil
	}
	s.initialized = true

	defer s.state.Update(func(st *State) bool {
		if !st.Loading {
			return false
		}
		st.Loading = false
		return true
	})

	sess, err := s.auth.GetSession(ctx)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Msg("Session check failed, continuing signed out")
		s.clear()
	case sess != nil && sess.User != nil:
		s.signedIn(ctx, sess.User)
	}

	if s.events == nil {
		return nil
	}
	unsub, err := s.events.Subscribe(ctx, s.handleEvent)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Auth event subscription failed")
		return nil
	}
	s.unsubscribe = unsub
	return nil
}

func (s *Store) handleEvent(ev models.AuthEvent) {
	user := ev.EventUser()
	if user == nil {
		s.logger.Info().Str("event", string(ev.Type)).Msg("Signed out")
		s.clear()
		return
	}
	s.signedIn(s.ctx, user)
}

// signedIn sets user and reloads the watchlist. A different user starts
// from an empty watchlist.
func (s *Store) signedIn(ctx context.Context, user *models.User) {
	u := *user
	s.state.Update(func(st *State) bool {
		if st.User != nil && *st.User == u {
			return false
		}
		if st.User == nil || st.User.ID != u.ID {
			st.Watchlist = []string{}
			s.mutations.reset()
		}
		st.User = &u
		return true
	})
	s.logger.Info().Str("user_id", u.ID).Msg("Session user set")

	if err := s.FetchWatchlist(ctx); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID).Msg("Watchlist load failed")
	}
}

func (s *Store) clear() {
	// Outstanding watchlist loads belong to the previous user
	s.fetches.Next()
	s.mutations.reset()
	s.state.Update(func(st *State) bool {
		if st.User == nil && len(st.Watchlist) == 0 {
			return false
		}
		st.User = nil
		st.Watchlist = []string{}
		return true
	})
}

// SignOut ends the remote session. Local user and watchlist are cleared
// whatever the remote outcome; the remote error is returned for logging.
func (s *Store) SignOut(ctx context.Context) error {
	defer s.clear()
	if err := s.auth.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// FetchWatchlist replaces the watchlist with the remote list. It does
// nothing when signed out, and discards a response for a user who is no
// longer signed in. Symbols added or removed while the list call was in
// flight keep their local membership.
func (s *Store) FetchWatchlist(ctx context.Context) error {
	user := s.state.Get().User
	if user == nil {
		return nil
	}
	ticket := s.fetches.Next()
	gen := s.mutations.current()

	symbols, err := s.repo.List(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch watchlist: %w", err)
	}

	s.state.Update(func(st *State) bool {
		if !s.fetches.IsLatest(ticket) || ctx.Err() != nil {
			return false
		}
		if st.User == nil || st.User.ID != user.ID {
			return false
		}
		list := reconcile(symbols, st.Watchlist, s.mutations.since(user.ID, gen))
		if slices.Equal(st.Watchlist, list) {
			return false
		}
		st.Watchlist = list
		return true
	})
	return nil
}

// AddToWatchlist appends symbol locally, then inserts it remotely. It is a
// no-op when signed out or when symbol is already present. A failed insert
// restores the prior watchlist and returns the error.
func (s *Store) AddToWatchlist(ctx context.Context, symbol string) error {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	unlock := s.symbols.Lock(sym)
	defer unlock()

	var userID string
	applied, err := s.state.Optimistic(ctx, state.Mutation[State]{
		Apply: func(st *State) bool {
			if st.User == nil || slices.Contains(st.Watchlist, sym) {
				return false
			}
			userID = st.User.ID
			st.Watchlist = append(st.Watchlist, sym)
			s.mutations.begin(userID, sym)
			return true
		},
		Commit: func(ctx context.Context) error {
			return s.repo.Insert(ctx, userID, sym)
		},
		Compensate: func(st *State) {
			if st.User == nil || st.User.ID != userID {
				return
			}
			if i := slices.Index(st.Watchlist, sym); i >= 0 {
				st.Watchlist = slices.Delete(st.Watchlist, i, i+1)
			}
		},
	})
	if applied {
		s.mutations.end(userID, sym)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", sym).Msg("Watchlist add reverted")
		return fmt.Errorf("failed to add %s to watchlist: %w", sym, err)
	}
	return nil
}

// RemoveFromWatchlist removes symbol locally, then deletes it remotely by
// (user_id, symbol). A failed delete restores the prior watchlist.
func (s *Store) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	unlock := s.symbols.Lock(sym)
	defer unlock()

	var userID string
	var at int
	applied, err := s.state.Optimistic(ctx, state.Mutation[State]{
		Apply: func(st *State) bool {
			if st.User == nil {
				return false
			}
			at = slices.Index(st.Watchlist, sym)
			if at < 0 {
				return false
			}
			userID = st.User.ID
			st.Watchlist = slices.Delete(st.Watchlist, at, at+1)
			s.mutations.begin(userID, sym)
			return true
		},
		Commit: func(ctx context.Context) error {
			return s.repo.Delete(ctx, userID, sym)
		},
		Compensate: func(st *State) {
			if st.User == nil || st.User.ID != userID || slices.Contains(st.Watchlist, sym) {
				return
			}
			st.Watchlist = slices.Insert(st.Watchlist, min(at, len(st.Watchlist)), sym)
		},
	})
	if applied {
		s.mutations.end(userID, sym)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("symbol", sym).Msg("Watchlist remove reverted")
		return fmt.Errorf("failed to remove %s from watchlist: %w", sym, err)
	}
	return nil
}

// State returns the current snapshot
func (s *Store) State() State {
	return s.state.Get()
}

// Contains reports whether symbol is on the watchlist
func (s *Store) Contains(symbol string) bool {
	sym, err := models.NormalizeSymbol(symbol)
	if err != nil {
		return false
	}
	return slices.Contains(s.state.Get().Watchlist, sym)
}

// Subscribe registers l for every change and returns its unsubscribe func.
// l must not call store methods synchronously.
func (s *Store) Subscribe(l func(State)) func() {
	return s.state.Subscribe(l)
}

// Close drops the auth event subscription. Close is safe to call more than once.
func (s *Store) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	s.closed = true
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	return nil
}

