package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tradeonly/internal/app"
	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/models"
	"github.com/bobmcallan/tradeonly/internal/render"
)

var (
	configPath = flag.String("config", "", "Path to tradeonly.toml (default: $TRADEONLY_CONFIG, then next to the binary)")
	logLevel   = flag.String("log-level", "", "Override the configured log level")
	style      = flag.String("style", render.StyleAuto, "Terminal style: auto, dark, light or notty")
	width      = flag.Int("width", 100, "Word wrap width for rendered output")
)

// stdout and stderr are swapped by tests
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
	c.Register(&versionCmd{}, "")

	c.Register(&quoteCmd{}, "stocks")
	c.Register(&historyCmd{}, "stocks")
	c.Register(&searchCmd{}, "stocks")
	c.Register(&watchCmd{}, "stocks")

	c.Register(&overviewCmd{}, "market")
	c.Register(&moversCmd{}, "market")
	c.Register(&sectorCmd{}, "market")

	c.Register(&loginCmd{}, "account")
	c.Register(&signupCmd{}, "account")
	c.Register(&logoutCmd{}, "account")
	c.Register(&watchlistCmd{}, "account")

	c.Register(&serveCmd{}, "server")
}

// openApp builds the App for a one-shot command. Logging drops to warn
// unless -log-level says otherwise, so rendered output stays readable.
func openApp(ctx context.Context) (*app.App, error) {
	common.LoadVersionFromFile()

	cfg, err := common.LoadConfig(app.ResolveConfigPath(*configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logging.Level = "warn"
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	return app.NewWithConfig(ctx, cfg, common.NewLoggerFromConfig(cfg.Logging))
}

// printMarkdown renders md for the terminal, falling back to the raw
// Markdown when the renderer cannot be built.
func printMarkdown(md string) {
	r, err := render.New(*style, *width)
	if err != nil {
		fmt.Fprintln(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprintln(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

// currencyForSymbol guesses the quote currency from an exchange suffix
func currencyForSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO") {
		return "INR"
	}
	return "USD"
}

func currencyForRegion(region models.Region) string {
	if region == models.RegionIndia {
		return "INR"
	}
	return "USD"
}

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the tradeonly version" }
func (*versionCmd) Usage() string            { return "tradeonly version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	common.LoadVersionFromFile()
	fmt.Fprintln(stdout, common.CurrentVersion())
	return subcommands.ExitSuccess
}
