package main

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tradeonly/internal/app"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/render"
	"github.com/bobmcallan/tradeonly/internal/stores/market"
)

// regionFlag selects the market region for a command; empty keeps the configured one.
type regionFlag struct {
	region string
}

func (r *regionFlag) set(f *flag.FlagSet) {
	f.StringVar(&r.region, "region", "", "Market region: us or in (default from [api] region)")
}

// apply switches the market store to the requested region
func (r *regionFlag) apply(a *app.App) (models.Region, error) {
	if r.region == "" {
		return a.Market.Region(), nil
	}
	region, err := models.ParseRegion(r.region)
	if err != nil {
		return "", err
	}
	a.Market.SetRegion(region)
	return region, nil
}

type overviewCmd struct {
	regionFlag
}

func (*overviewCmd) Name() string     { return "overview" }
func (*overviewCmd) Synopsis() string { return "show indices, sector performance and top gainers" }
func (*overviewCmd) Usage() string {
	return `tradeonly overview [-region us|in]

  Loads the dashboard lists concurrently. A list that fails to load is shown
  with its error; the others are still displayed.
`
}
func (c *overviewCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *overviewCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	if _, err := c.apply(a); err != nil {
		return fail("%v", err)
	}
	loadErr := a.Market.LoadDashboard(ctx)
	printMarkdown(render.OverviewMarkdown(a.Market.State()))
	if loadErr != nil {
		return fail("%v", loadErr)
	}
	return subcommands.ExitSuccess
}

type moversCmd struct {
	regionFlag
	moverType string
}

func (*moversCmd) Name() string     { return "movers" }
func (*moversCmd) Synopsis() string { return "show the biggest gainers or losers" }
func (*moversCmd) Usage() string {
	return "tradeonly movers [-type gainers|losers] [-region us|in]\n"
}

func (c *moversCmd) SetFlags(f *flag.FlagSet) {
	c.set(f)
	f.StringVar(&c.moverType, "type", string(models.MoverGainers), "gainers or losers")
}

func (c *moversCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	moverType, err := models.ParseMoverType(c.moverType)
	if err != nil {
		return fail("%v", err)
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	region, err := c.apply(a)
	if err != nil {
		return fail("%v", err)
	}
	if err := a.Market.FetchMovers(ctx, moverType); err != nil {
		return failList(a.Market.State().Movers[moverType], err)
	}
	title := "Top " + strings.ToUpper(string(moverType[:1])) + string(moverType[1:])
	printMarkdown(render.MoversMarkdown(title, a.Market.State().Movers[moverType], currencyForRegion(region)))
	return subcommands.ExitSuccess
}

type sectorCmd struct {
	regionFlag
}

func (*sectorCmd) Name() string     { return "sector" }
func (*sectorCmd) Synopsis() string { return "list the stocks in a sector" }
func (*sectorCmd) Usage() string {
	return "tradeonly sector [-region us|in] <name>\n"
}
func (c *sectorCmd) SetFlags(f *flag.FlagSet) { c.set(f) }

func (c *sectorCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("usage: tradeonly sector <name>")
	}
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	region, err := c.apply(a)
	if err != nil {
		return fail("%v", err)
	}
	name := strings.Join(f.Args(), " ")
	if err := a.Market.FetchSector(ctx, name); err != nil {
		return failList(a.Market.State().BySector[market.SectorKey(name)], err)
	}
	sl := a.Market.State().BySector[market.SectorKey(name)]
	printMarkdown(render.MoversMarkdown(name, sl, currencyForRegion(region)))
	return subcommands.ExitSuccess
}

// failList reports the store's message for a failed list, or err when the
// request never reached the store.
func failList(sl market.Slice[models.Mover], err error) subcommands.ExitStatus {
	if sl.Error != "" {
		return fail("%s", sl.Error)
	}
	return fail("%v", err)
}
