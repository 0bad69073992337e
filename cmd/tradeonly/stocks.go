package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/poll"
	"github.com/bobmcallan/tradeonly/internal/render"
	"github.com/bobmcallan/tradeonly/internal/stores/stock"
)

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "show the current quote for a symbol" }
func (*quoteCmd) Usage() string {
	return `tradeonly quote <SYMBOL>

  Fetches and displays a single quote with day range, volume, market cap and
  the exchange's trading status.
`
}
func (*quoteCmd) SetFlags(_ *flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fail("usage: tradeonly quote <SYMBOL>")
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	err = a.Stocks.FetchQuote(ctx, f.Arg(0))
	st := a.Stocks.State()
	if st.Quote == nil {
		if st.Error != "" {
			return fail("%s", st.Error)
		}
		return fail("%v", err)
	}
	printMarkdown(render.QuoteStateMarkdown(st, time.Now()) + render.LogoMarkdown(st.Quote, a.Config.API.LogoToken))
	return subcommands.ExitSuccess
}

type historyCmd struct {
	period string
	rows   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show price history for a symbol" }
func (*historyCmd) Usage() string {
	return `tradeonly history [-period 1mo] [-rows 10] <SYMBOL>

  Periods: 1d, 5d, 1mo, 3mo, 6mo, 1y, ytd, max.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", string(models.DefaultPeriod), "History range")
	f.IntVar(&c.rows, "rows", 10, "Number of most recent bars to list (0 for all)")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fail("usage: tradeonly history [-period 1mo] <SYMBOL>")
	}
	period, err := models.ParsePeriod(c.period)
	if err != nil {
		return fail("%v", err)
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	symbol := f.Arg(0)
	if err := a.Stocks.FetchHistory(ctx, symbol, period); err != nil {
		if msg := a.Stocks.State().HistoryError; msg != "" {
			return fail("%s", msg)
		}
		return fail("%v", err)
	}
	printMarkdown(render.HistoryMarkdown(a.Stocks.State().History, currencyForSymbol(symbol), c.rows))
	return subcommands.ExitSuccess
}

type searchCmd struct{}

func (*searchCmd) Name() string             { return "search" }
func (*searchCmd) Synopsis() string         { return "search symbols and company names" }
func (*searchCmd) Usage() string            { return "tradeonly search <text>\n" }
func (*searchCmd) SetFlags(_ *flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("usage: tradeonly search <text>")
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	query := strings.Join(f.Args(), " ")
	if err := a.Stocks.SearchStocks(ctx, query); err != nil {
		if msg := a.Stocks.State().SearchError; msg != "" {
			return fail("%s", msg)
		}
		return fail("%v", err)
	}
	st := a.Stocks.State()
	printMarkdown(render.SearchMarkdown(st.SearchQuery, st.SearchResults))
	return subcommands.ExitSuccess
}

type watchCmd struct {
	interval time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "poll a quote until interrupted" }
func (*watchCmd) Usage() string {
	return `tradeonly watch [-interval 10s] <SYMBOL>

  Re-renders the quote each time a refresh lands. A failed refresh keeps the
  last good quote on screen. Stops on Ctrl-C.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.interval, "interval", 0, "Refresh interval (default from [polling] quote_interval)")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fail("usage: tradeonly watch [-interval 10s] <SYMBOL>")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	interval := c.interval
	if interval <= 0 {
		interval = a.Config.Polling.GetQuoteInterval()
	}

	var (
		mu       sync.Mutex
		lastSeen time.Time
	)
	unsubscribe := a.Stocks.Subscribe(func(st stock.State) {
		mu.Lock()
		defer mu.Unlock()
		if st.Loading {
			return
		}
		if st.Quote != nil && !st.Quote.Timestamp.After(lastSeen) && st.PollFailures == 0 {
			return
		}
		if st.Quote != nil {
			lastSeen = st.Quote.Timestamp
		}
		printMarkdown(render.QuoteStateMarkdown(st, time.Now()))
	})
	defer unsubscribe()

	h, err := poll.WatchQuote(ctx, a.Scheduler, a.Stocks, f.Arg(0), interval)
	if err != nil {
		return fail("%v", err)
	}
	defer h.Stop()

	fmt.Fprintf(stderr, "Watching %s every %s, Ctrl-C to stop\n", f.Arg(0), interval)
	<-ctx.Done()
	return subcommands.ExitSuccess
}
