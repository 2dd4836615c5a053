// Package text renders plain-text documents, tracking scroll offset as
// the position signal.
package text

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/folio-reader/folio/internal/book"
	"github.com/folio-reader/folio/internal/render"
)

const (
	// MinScale and MaxScale bound the text scale multiplier.
	MinScale = 0.4
	MaxScale = 3.0
)

// ClampScale bounds a requested text scale.
func ClampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// Config wires a View to its host.
type Config struct {
	Logger *slog.Logger
	// OnScroll fires when the scroll offset changes; the host persists
	// it.
	OnScroll func(offset float64)
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// View is an open plain-text document.
type View struct {
	cfg    Config
	text   string
	scale  float64
	offset float64
}

// Open loads and decodes the text content from the source. Fetch or
// read failures surface as a LoadError.
func Open(ctx context.Context, src book.Source, cfg Config) (*View, error) {
	cfg.defaults()
	data, err := src.Read(ctx)
	if err != nil {
		return nil, render.NewLoadError("plaintext", err)
	}
	if !utf8.Valid(data) {
		return nil, render.NewLoadError("plaintext", fmt.Errorf("content is not valid text"))
	}
	return &View{cfg: cfg, text: string(data), scale: 1.0}, nil
}

// Text returns the full decoded content.
func (v *View) Text() string { return v.text }

// SetScale applies a text scale multiplier, clamped to [0.4, 3.0].
func (v *View) SetScale(scale float64) float64 {
	v.scale = ClampScale(scale)
	return v.scale
}

// Scale returns the applied multiplier.
func (v *View) Scale() float64 { return v.scale }

// SetScrollOffset records a sampled scroll position and reports it for
// persistence.
func (v *View) SetScrollOffset(offset float64) {
	if offset < 0 {
		offset = 0
	}
	if offset == v.offset {
		return
	}
	v.offset = offset
	if v.cfg.OnScroll != nil {
		v.cfg.OnScroll(offset)
	}
}

// ScrollOffset returns the current scroll position.
func (v *View) ScrollOffset() float64 { return v.offset }

// ResumeAt restores a saved scroll offset without re-reporting it.
func (v *View) ResumeAt(offset float64) {
	if offset < 0 {
		offset = 0
	}
	v.offset = offset
}

// Lines returns the content split into lines for display.
func (v *View) Lines() []string {
	return strings.Split(strings.ReplaceAll(v.text, "\r\n", "\n"), "\n")
}
