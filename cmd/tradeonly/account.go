package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/bobmcallan/tradeonly/internal/render"
)

var stdin io.Reader = os.Stdin

// credential resolves a value from its flag, then env, then a prompt on stdin
func credential(value, env, prompt string, in *bufio.Reader) (string, error) {
	if value != "" {
		return value, nil
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	fmt.Fprint(stderr, prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

type loginCmd struct {
	email    string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in with email and password" }
func (*loginCmd) Usage() string {
	return `tradeonly login [-email you@example.com] [-password ...]

  Missing values come from TRADEONLY_EMAIL and TRADEONLY_PASSWORD, then a
  prompt. The session is stored in [auth] session_file and announced on the
  auth event bus, so a running "serve" picks it up when events use redis.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email")
	f.StringVar(&c.password, "password", "", "Account password")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in := bufio.NewReader(stdin)
	email, err := credential(c.email, "TRADEONLY_EMAIL", "Email: ", in)
	if err != nil {
		return fail("%v", err)
	}
	password, err := credential(c.password, "TRADEONLY_PASSWORD", "Password: ", in)
	if err != nil {
		return fail("%v", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	s, err := a.Auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return fail("Sign in failed: %v", err)
	}
	fmt.Fprintf(stdout, "Signed in as %s\n", s.User.Email)
	return subcommands.ExitSuccess
}

type signupCmd struct {
	email    string
	password string
	name     string
}

func (*signupCmd) Name() string     { return "signup" }
func (*signupCmd) Synopsis() string { return "create an account" }
func (*signupCmd) Usage() string {
	return "tradeonly signup [-email you@example.com] [-password ...] [-name \"Full Name\"]\n"
}

func (c *signupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email")
	f.StringVar(&c.password, "password", "", "Account password")
	f.StringVar(&c.name, "name", "", "Display name")
}

func (c *signupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	in := bufio.NewReader(stdin)
	email, err := credential(c.email, "TRADEONLY_EMAIL", "Email: ", in)
	if err != nil {
		return fail("%v", err)
	}
	password, err := credential(c.password, "TRADEONLY_PASSWORD", "Password: ", in)
	if err != nil {
		return fail("%v", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	s, err := a.Auth.SignUp(ctx, email, password, c.name)
	if err != nil {
		return fail("Sign up failed: %v", err)
	}
	if s.AccessToken == "" {
		fmt.Fprintf(stdout, "Account created for %s, confirm your email to sign in\n", email)
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "Account created, signed in as %s\n", s.User.Email)
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "sign out and forget the stored session" }
func (*logoutCmd) Usage() string            { return "tradeonly logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	if err := a.Init(ctx); err != nil {
		return fail("%v", err)
	}
	if !a.Session.State().IsAuthenticated() {
		fmt.Fprintln(stdout, "Not signed in")
		return subcommands.ExitSuccess
	}
	// Local state is cleared even when the remote call fails
	if err := a.Session.SignOut(ctx); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	fmt.Fprintln(stdout, "Signed out")
	return subcommands.ExitSuccess
}

type watchlistCmd struct{}

func (*watchlistCmd) Name() string     { return "watchlist" }
func (*watchlistCmd) Synopsis() string { return "show or edit your watchlist" }
func (*watchlistCmd) Usage() string {
	return `tradeonly watchlist [add|remove <SYMBOL>]

  Without arguments lists the watchlist with current quotes. Requires a
  signed-in session (see "tradeonly login").
`
}
func (*watchlistCmd) SetFlags(_ *flag.FlagSet) {}

func (*watchlistCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var action, symbol string
	switch f.NArg() {
	case 0:
	case 2:
		action, symbol = strings.ToLower(f.Arg(0)), f.Arg(1)
		if action != "add" && action != "remove" {
			return fail("unknown watchlist action %q (want add or remove)", action)
		}
	default:
		return fail("usage: tradeonly watchlist [add|remove <SYMBOL>]")
	}

	a, err := openApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	if err := a.Init(ctx); err != nil {
		return fail("%v", err)
	}
	if !a.Session.State().IsAuthenticated() {
		return fail("Sign in to use the watchlist (tradeonly login)")
	}

	switch action {
	case "add":
		err = a.Session.AddToWatchlist(ctx, symbol)
	case "remove":
		err = a.Session.RemoveFromWatchlist(ctx, symbol)
	}
	if err != nil {
		return fail("%v", err)
	}

	symbols := a.Session.State().Watchlist
	if len(symbols) > 0 {
		if err := a.Stocks.FetchQuotes(ctx, symbols); err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}
	printMarkdown(render.WatchlistMarkdown(symbols, a.Stocks.State().Batch))
	return subcommands.ExitSuccess
}
