// Package reflow renders reflowable structured-markup documents (EPUB)
// in a paginated flow that re-layouts on viewport or type-scale
// changes. Positions are reported as opaque locators independent of
// page numbering.
package reflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"

	"github.com/folio-reader/folio/internal/book"
	"github.com/folio-reader/folio/internal/render"
)

const (
	// MinScale and MaxScale bound the type scale in percent.
	MinScale = 50
	MaxScale = 200
	// ScaleStep is the granularity of type-scale adjustment.
	ScaleStep = 10
)

// ClampScale bounds a requested type scale and snaps it to the step.
func ClampScale(percent int) int {
	if percent < MinScale {
		return MinScale
	}
	if percent > MaxScale {
		return MaxScale
	}
	return (percent / ScaleStep) * ScaleStep
}

// Config wires a Rendition to its host.
type Config struct {
	Logger *slog.Logger
	// OnRelocated fires with the new resumable locator on every
	// position change while reading.
	OnRelocated func(locator string)
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// chapter is one spine item's extracted text.
type chapter struct {
	title string
	words []string
}

// pageRef ties a laid-out page to its layout-independent position.
type pageRef struct {
	chapter int
	word    int // first word of the page within the chapter
}

// Rendition is an open reflowable document laid out for a viewport.
// The layout is recomputed on scale or viewport changes while the
// reading position, tracked as chapter and word, is preserved.
type Rendition struct {
	rc      *epub.ReadCloser
	cleanup func()
	cfg     Config

	chapters []chapter
	width    int
	height   int
	scale    int // percent

	pages []pageRef
	pos   int // index into pages

	// layout-independent position
	curChapter int
	curWord    int
}

// Open loads a reflowable document from the source. The returned
// rendition has no layout until SetViewport is called.
func Open(ctx context.Context, src book.Source, cfg Config) (*Rendition, error) {
	cfg.defaults()

	path, cleanup, err := src.Materialize(ctx, "folio-*.epub")
	if err != nil {
		return nil, render.NewLoadError("reflowable", err)
	}

	rc, err := epub.OpenReader(path)
	if err != nil {
		cleanup()
		return nil, render.NewLoadError("reflowable", fmt.Errorf("open epub: %w", err))
	}
	if len(rc.Rootfiles) == 0 {
		rc.Close()
		cleanup()
		return nil, render.NewLoadError("reflowable", fmt.Errorf("no rootfiles in epub"))
	}

	chapters := extractChapters(rc.Rootfiles[0])
	if len(chapters) == 0 {
		rc.Close()
		cleanup()
		return nil, render.NewLoadError("reflowable", fmt.Errorf("no readable spine content"))
	}

	return &Rendition{
		rc:       rc,
		cleanup:  cleanup,
		cfg:      cfg,
		chapters: chapters,
		scale:    100,
	}, nil
}

func extractChapters(book *epub.Rootfile) []chapter {
	var out []chapter
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		r, err := ref.Item.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			continue
		}
		title, text := textFromMarkup(string(data))
		words := strings.Fields(text)
		if len(words) == 0 {
			continue
		}
		out = append(out, chapter{title: title, words: words})
	}
	return out
}

// textFromMarkup extracts readable text from chapter markup, keeping
// block boundaries as newlines. The first heading becomes the title.
func textFromMarkup(s string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString(" ")
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "h1", "h2", "h3":
				if title == "" {
					title = strings.TrimSpace(textContent(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, sb.String()
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// SetViewport sets the layout area in character cells and re-layouts,
// preserving the reading position.
func (r *Rendition) SetViewport(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	r.width = width
	r.height = height
	r.relayout()
}

// Display shows the page containing the locator, or the start when the
// locator is empty or cannot be resolved. It reports the resulting
// position.
func (r *Rendition) Display(locator string) {
	ch, word, ok := parseLocator(locator)
	if !ok || ch >= len(r.chapters) || word >= len(r.chapters[ch].words) {
		ch, word = 0, 0
	}
	r.curChapter, r.curWord = ch, word
	r.pos = r.pageFor(ch, word)
	r.relocated()
}

// SetScale adjusts the type scale, clamped to [50, 200] in 10-point
// steps, and re-layouts. Returns the applied scale.
func (r *Rendition) SetScale(percent int) int {
	percent = ClampScale(percent)
	if percent == r.scale {
		return percent
	}
	r.scale = percent
	r.relayout()
	return percent
}

// Scale returns the applied type scale in percent.
func (r *Rendition) Scale() int { return r.scale }

// Next advances one page, engine-native forward navigation.
func (r *Rendition) Next() {
	if r.pos < len(r.pages)-1 {
		r.pos++
		r.syncPosition()
		r.relocated()
	}
}

// Prev goes back one page.
func (r *Rendition) Prev() {
	if r.pos > 0 {
		r.pos--
		r.syncPosition()
		r.relocated()
	}
}

// Locator returns the opaque resumable locator of the current
// position.
func (r *Rendition) Locator() string {
	return formatLocator(r.curChapter, r.curWord)
}

// PageInfo returns the current page and page total for the active
// layout.
func (r *Rendition) PageInfo() (current, total int) {
	return r.pos + 1, len(r.pages)
}

// ChapterTitle returns the title of the chapter under the current
// position, if the markup carried one.
func (r *Rendition) ChapterTitle() string {
	if r.curChapter < len(r.chapters) {
		return r.chapters[r.curChapter].title
	}
	return ""
}

// Content returns the laid-out lines of the current page.
func (r *Rendition) Content() []string {
	if r.pos >= len(r.pages) {
		return nil
	}
	ref := r.pages[r.pos]
	lineWidth, pageLines := r.cellBudget()

	words := r.chapters[ref.chapter].words[ref.word:]
	lines := wrapWords(words, lineWidth)
	if len(lines) > pageLines {
		lines = lines[:pageLines]
	}
	return lines
}

// Close releases the open document and its backing file. Skipping this
// leaves the in-memory document representation resident.
func (r *Rendition) Close() error {
	if r.rc != nil {
		r.rc.Close()
		r.rc = nil
	}
	if r.cleanup != nil {
		r.cleanup()
		r.cleanup = nil
	}
	return nil
}

// cellBudget converts viewport size and type scale into words-per-line
// and lines-per-page budgets. Larger type means fewer cells.
func (r *Rendition) cellBudget() (lineWidth, pageLines int) {
	lineWidth = r.width * 100 / r.scale
	if lineWidth < 1 {
		lineWidth = 1
	}
	pageLines = r.height * 100 / r.scale
	if pageLines < 1 {
		pageLines = 1
	}
	return lineWidth, pageLines
}

func (r *Rendition) relayout() {
	lineWidth, pageLines := r.cellBudget()
	r.pages = r.pages[:0]

	for ci, ch := range r.chapters {
		lines := wrapWords(ch.words, lineWidth)
		word := 0
		for start := 0; start < len(lines); start += pageLines {
			r.pages = append(r.pages, pageRef{chapter: ci, word: word})
			end := start + pageLines
			if end > len(lines) {
				end = len(lines)
			}
			for _, ln := range lines[start:end] {
				word += len(strings.Fields(ln))
			}
		}
	}
	if len(r.pages) == 0 {
		r.pages = []pageRef{{}}
	}
	r.pos = r.pageFor(r.curChapter, r.curWord)
}

// pageFor finds the layout page containing a chapter/word position.
func (r *Rendition) pageFor(ch, word int) int {
	for i := len(r.pages) - 1; i >= 0; i-- {
		p := r.pages[i]
		if p.chapter < ch || (p.chapter == ch && p.word <= word) {
			return i
		}
	}
	return 0
}

// syncPosition records the layout-independent position of the current
// page.
func (r *Rendition) syncPosition() {
	if r.pos < len(r.pages) {
		r.curChapter = r.pages[r.pos].chapter
		r.curWord = r.pages[r.pos].word
	}
}

func (r *Rendition) relocated() {
	if r.cfg.OnRelocated != nil {
		r.cfg.OnRelocated(r.Locator())
	}
}

// wrapWords greedily wraps words into lines of at most width cells.
func wrapWords(words []string, width int) []string {
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if cur.Len()+1+len(w) > width {
			lines = append(lines, cur.String())
			cur.Reset()
			cur.WriteString(w)
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// Locators are opaque to callers; the format below is internal.

func formatLocator(chapter, word int) string {
	return fmt.Sprintf("folio:%d:%d", chapter, word)
}

func parseLocator(s string) (chapter, word int, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	var ch, w int
	if _, err := fmt.Sscanf(s, "folio:%d:%d", &ch, &w); err != nil {
		return 0, 0, false
	}
	if ch < 0 || w < 0 {
		return 0, 0, false
	}
	return ch, w, true
}
