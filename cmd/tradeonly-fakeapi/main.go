// Command tradeonly-fakeapi serves the fixture market data API and auth
// backend for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bobmcallan/tradeonly/internal/common"
	"github.com/bobmcallan/tradeonly/internal/fakeapi"
)

type userList []string

func (u *userList) String() string     { return strings.Join(*u, ",") }
func (u *userList) Set(v string) error { *u = append(*u, v); return nil }

func main() {
	var users userList
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	secret := flag.String("jwt-secret", fakeapi.DefaultJWTSecret, "HS256 secret for issued tokens")
	ttl := flag.Duration("token-ttl", time.Hour, "Access token lifetime")
	level := flag.String("log-level", "info", "Log level")
	flag.Var(&users, "user", "Seed account as email:password[:name] (repeatable)")
	flag.Parse()

	logger := common.NewLogger(*level)

	fake := fakeapi.New(
		fakeapi.WithJWTSecret(*secret),
		fakeapi.WithTokenTTL(*ttl),
		fakeapi.WithLogger(logger),
	)
	for _, u := range users {
		parts := strings.SplitN(u, ":", 3)
		if len(parts) < 2 {
			fmt.Fprintf(os.Stderr, "invalid -user %q, want email:password[:name]\n", u)
			os.Exit(2)
		}
		name := ""
		if len(parts) == 3 {
			name = parts[2]
		}
		if _, err := fake.AddUser(parts[0], parts[1], name); err != nil {
			fmt.Fprintf(os.Stderr, "failed to add user %s: %v\n", parts[0], err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:        *addr,
		Handler:     fake.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Int("users", len(users)).Msg("Starting fixture API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Fixture API failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Fixture API shutdown failed")
	}
	logger.Info().Msg("Fixture API stopped")
}
