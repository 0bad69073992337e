package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

var bannerOut io.Writer = os.Stderr

// PrintBanner writes the serve startup banner and logs the effective settings.
func PrintBanner(config *Config, logger *Logger) {
	bridgeURL := fmt.Sprintf("ws://%s:%d/ws", config.Server.Host, config.Server.Port)

	frame := banner.ColorCyan + strings.Repeat("─", 60) + banner.ColorReset
	bold := banner.ColorBold + banner.ColorWhite

	fmt.Fprintln(bannerOut)
	fmt.Fprintln(bannerOut, frame)
	fmt.Fprintf(bannerOut, "%s  TRADEONLY  market dashboard data bridge%s\n", bold, banner.ColorReset)
	fmt.Fprintln(bannerOut, frame)

	rows := [][2]string{
		{"Version", CurrentVersion().String()},
		{"Environment", config.Environment},
		{"API", config.API.BaseURL},
		{"Region", config.API.Region},
		{"Bridge", bridgeURL},
		{"Watchlist store", config.Storage.Driver},
		{"Auth events", config.Events.Driver},
		{"Quote interval", config.Polling.GetQuoteInterval().String()},
	}
	for _, row := range rows {
		fmt.Fprintf(bannerOut, "%s  %-16s%s %s\n", banner.ColorCyan, row[0], banner.ColorReset, row[1])
	}
	fmt.Fprintln(bannerOut, frame)
	fmt.Fprintln(bannerOut)

	logger.Info().
		Str("version", CurrentVersion().Version).
		Str("environment", config.Environment).
		Str("api", config.API.BaseURL).
		Str("bridge", bridgeURL).
		Str("storage", config.Storage.Driver).
		Str("events", config.Events.Driver).
		Msg("Bridge started")
}

// PrintShutdownBanner writes the shutdown line.
func PrintShutdownBanner(logger *Logger) {
	fmt.Fprintf(bannerOut, "\n%s  tradeonly shutting down%s\n\n", banner.ColorBold, banner.ColorReset)
	logger.Info().Msg("Bridge shutting down")
}
