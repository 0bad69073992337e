package poll

import (
	"context"
	"fmt"
	"time"
)

// QuoteFetcher is the part of the stock store a quote watch needs
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol string) error
}

// WatchQuote fetches symbol once, then every interval until the returned
// handle is stopped or ctx is done. A zero interval uses DefaultInterval.
// Fetch errors are recorded by the store and only logged here.
func WatchQuote(ctx context.Context, s *Scheduler, store QuoteFetcher, symbol string, interval time.Duration) (*Handle, error) {
	if interval == 0 {
		interval = DefaultInterval
	}

	if err := store.FetchQuote(ctx, symbol); err != nil {
		s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Initial quote fetch failed")
	}

	h, err := s.Every(fmt.Sprintf("quote:%s", symbol), interval, func(runCtx context.Context) {
		if err := store.FetchQuote(runCtx, symbol); err != nil {
			s.logger.Debug().Err(err).Str("symbol", symbol).Msg("Quote poll failed")
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.Done():
		}
	}()
	return h, nil
}
