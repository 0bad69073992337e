// Package render turns store state into Markdown and renders it for the
// terminal with glamour.
package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Styles accepted by New besides "auto"
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StyleNoTTY = "notty"
)

// Renderer renders Markdown for a terminal
type Renderer struct {
	term *glamour.TermRenderer
}

// New creates a renderer. An empty style detects the terminal background;
// width <= 0 keeps glamour's default wrap.
func New(style string, width int) (*Renderer, error) {
	var opts []glamour.TermRendererOption
	if style == "" || style == StyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return &Renderer{term: term}, nil
}

// Render renders markdown
func (r *Renderer) Render(markdown string) (string, error) {
	out, err := r.term.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
