// Package paginated renders fixed-layout paginated documents with
// visibility-gated lazy page loading.
package paginated

import (
	"context"
	"log/slog"
	"sync"
)

// PageStatus is the per-page visibility state machine. A page moves
// unobserved -> observing -> triggered at most once; re-entering the
// viewport after triggering never re-fires a load.
type PageStatus int

const (
	Unobserved PageStatus = iota
	Observing
	Triggered
)

// Notifier is the proximity capability: the view arms an observation
// per page and the host reports back through View.PageProximate when a
// page's container first comes within one viewport height of the
// visible area.
type Notifier interface {
	Observe(page int)
	Forget(page int)
}

// forceRenderUnder is the page count below which lazy gating is
// bypassed and every page renders at open.
const forceRenderUnder = 10

const (
	// MinScale and MaxScale bound the zoom factor.
	MinScale = 0.4
	MaxScale = 3.0
)

// ClampScale bounds a requested zoom factor.
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
	Notifier Notifier
	Logger   *slog.Logger

	// OnRendered fires when a page finishes rendering.
	OnRendered func(page int)
	// OnVisible fires when scrolling makes a new page current; the
	// host persists the position. Suppressed while narration drives
	// navigation.
	OnVisible func(page int)
	// OnNavigate fires on explicit page navigation; the host scrolls
	// the page container into view and persists the position.
	OnNavigate func(page int)
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type pageState struct {
	status PageStatus
	page   *Page
	cancel context.CancelFunc
	gen    int
}

// View drives lazy rendering of an open Doc. Pages render
// independently: short documents render fully at open, longer ones
// render as their containers approach the viewport, one-shot per page.
type View struct {
	doc Doc
	cfg Config

	mu       sync.Mutex
	pages    []pageState // index 1..PageCount
	scale    float64
	current  int
	suppress bool
	closed   bool
}

// NewView prepares lazy rendering over an open document. Documents
// under ten pages are cheap to render fully and skip the gating.
func NewView(doc Doc, cfg Config) *View {
	cfg.defaults()
	count := doc.PageCount()
	v := &View{
		doc:     doc,
		cfg:     cfg,
		pages:   make([]pageState, count+1),
		scale:   1.0,
		current: 1,
	}

	if count < forceRenderUnder {
		for n := 1; n <= count; n++ {
			v.pages[n].status = Triggered
			v.requestRender(n)
		}
		return v
	}

	for n := 1; n <= count; n++ {
		v.pages[n].status = Observing
		if cfg.Notifier != nil {
			cfg.Notifier.Observe(n)
		}
	}
	return v
}

// PageCount returns the number of pages in the open document.
func (v *View) PageCount() int { return v.doc.PageCount() }

// Current returns the current page number.
func (v *View) Current() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Scale returns the applied zoom factor.
func (v *View) Scale() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scale
}

// Status returns the visibility state of a page.
func (v *View) Status(page int) PageStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	if page < 1 || page >= len(v.pages) {
		return Unobserved
	}
	return v.pages[page].status
}

// Page returns the rendered content for a page, or nil while it is
// still loading or unobserved.
func (v *View) Page(page int) *Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	if page < 1 || page >= len(v.pages) {
		return nil
	}
	return v.pages[page].page
}

// PageProximate reports that a page's container entered the proximity
// threshold. The first report triggers the page's render and disarms
// the observation; later reports are ignored (one-shot latch).
// Proximity alone never moves the current page; that is PageVisible's
// job.
func (v *View) PageProximate(page int) {
	v.mu.Lock()
	if v.closed || page < 1 || page >= len(v.pages) || v.pages[page].status != Observing {
		v.mu.Unlock()
		return
	}
	v.pages[page].status = Triggered
	v.mu.Unlock()

	if v.cfg.Notifier != nil {
		v.cfg.Notifier.Forget(page)
	}
	v.requestRender(page)
}

// PageVisible reports that scrolling brought a page to the top of the
// viewport. Unlike PageProximate it keeps working after the render
// latch has fired, so the current page follows the reader's scrolling.
func (v *View) PageVisible(page int) {
	v.mu.Lock()
	if v.closed || v.suppress || page < 1 || page >= len(v.pages) || v.current == page {
		v.mu.Unlock()
		return
	}
	v.current = page
	v.mu.Unlock()

	if v.cfg.OnVisible != nil {
		v.cfg.OnVisible(page)
	}
}

// GoToPage navigates to a page, clamped to the document bounds, and
// asks the host to bring it into view.
func (v *View) GoToPage(page int) {
	count := v.doc.PageCount()
	if page < 1 {
		page = 1
	}
	if page > count {
		page = count
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.current = page
	// Navigation renders the target even if it never scrolled into
	// proximity.
	trigger := v.pages[page].status != Triggered
	if trigger {
		v.pages[page].status = Triggered
	}
	v.mu.Unlock()

	if trigger {
		if v.cfg.Notifier != nil {
			v.cfg.Notifier.Forget(page)
		}
		v.requestRender(page)
	}
	if v.cfg.OnNavigate != nil {
		v.cfg.OnNavigate(page)
	}
}

// ResumeAt restores a saved page number. A saved page beyond the
// current page count falls back to page 1.
func (v *View) ResumeAt(page int) {
	if page < 1 || page > v.doc.PageCount() {
		v.GoToPage(1)
		return
	}
	v.GoToPage(page)
}

// SetScale applies a new zoom factor, clamped to [0.4, 3.0], and
// re-renders every triggered page. An in-flight render for a page is
// cancelled when superseded, so the last requested scale wins.
func (v *View) SetScale(scale float64) float64 {
	scale = ClampScale(scale)

	v.mu.Lock()
	if v.closed || scale == v.scale {
		v.mu.Unlock()
		return scale
	}
	v.scale = scale
	var rerender []int
	for n := 1; n < len(v.pages); n++ {
		if v.pages[n].status == Triggered {
			rerender = append(rerender, n)
		}
	}
	v.mu.Unlock()

	for _, n := range rerender {
		v.requestRender(n)
	}
	return scale
}

// SetSuppressTracking toggles visibility-driven position tracking.
// While narration owns navigation, proximity signals must not move the
// current page underneath it.
func (v *View) SetSuppressTracking(on bool) {
	v.mu.Lock()
	v.suppress = on
	v.mu.Unlock()
}

// PageText extracts the text of a page for narration.
func (v *View) PageText(ctx context.Context, page int) (string, error) {
	return v.doc.PageText(ctx, page)
}

// Close cancels in-flight renders and releases the document.
func (v *View) Close() error {
	v.mu.Lock()
	v.closed = true
	for n := 1; n < len(v.pages); n++ {
		if v.pages[n].cancel != nil {
			v.pages[n].cancel()
			v.pages[n].cancel = nil
		}
	}
	v.mu.Unlock()
	return v.doc.Close()
}

func (v *View) requestRender(page int) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	ps := &v.pages[page]
	if ps.cancel != nil {
		ps.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ps.cancel = cancel
	ps.gen++
	gen := ps.gen
	scale := v.scale
	v.mu.Unlock()

	go func() {
		p, err := v.doc.RenderPage(ctx, page, scale)

		v.mu.Lock()
		if v.closed || v.pages[page].gen != gen {
			v.mu.Unlock()
			return
		}
		v.pages[page].cancel = nil
		if err != nil {
			v.mu.Unlock()
			v.cfg.Logger.Debug("page render failed", "page", page, "error", err)
			return
		}
		v.pages[page].page = p
		v.mu.Unlock()

		if v.cfg.OnRendered != nil {
			v.cfg.OnRendered(page)
		}
	}()
}
