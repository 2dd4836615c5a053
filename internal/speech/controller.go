package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is the playback state of the controller.
type State int

const (
	Idle State = iota
	Speaking
	Paused
)

func (s State) String() string {
	switch s {
	case Speaking:
		return "speaking"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Narrator is the active renderer's narration surface: page text
// extraction plus page advancement, supplied by the paginated view.
type Narrator interface {
	PageCount() int
	PageText(ctx context.Context, page int) (string, error)
	GoToPage(page int)
}

// maxTextChars caps a plain-text utterance.
const maxTextChars = 10000

// defaultMountDelay is the pause between advancing to the next page
// and narrating it, so the page has a chance to mount.
const defaultMountDelay = 200 * time.Millisecond

// Controller is the narration state machine: idle, speaking, paused.
// One controller owns the utterance slot; starting a new utterance
// supersedes any prior one, and synthesis errors terminate playback
// silently.
type Controller struct {
	synth      Synthesizer
	slot       Slot
	logger     *slog.Logger
	mountDelay time.Duration
	onChange   func() // fired after every state transition, may be nil

	mu    sync.Mutex
	state State
	page  int // page being narrated, 0 when none
	voice string
	rate  float64
	gen   int // playback generation; stale goroutines exit quietly
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMountDelay overrides the page-mount delay before auto-advance
// narration.
func WithMountDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.mountDelay = d }
}

// WithControllerLogger overrides the logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithOnChange registers a callback invoked after each transition.
func WithOnChange(fn func()) ControllerOption {
	return func(c *Controller) { c.onChange = fn }
}

// NewController wraps a synthesizer in a playback controller.
func NewController(synth Synthesizer, opts ...ControllerOption) *Controller {
	c := &Controller{
		synth:      synth,
		logger:     slog.Default(),
		mountDelay: defaultMountDelay,
		rate:       1.0,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether playback has started and not been stopped.
// While active, page-visibility position tracking is suppressed so the
// lazy-visibility signal cannot fight programmatic auto-advance.
func (c *Controller) Active() bool {
	return c.State() != Idle
}

// SpeakingPage returns the page being narrated, if any.
func (c *Controller) SpeakingPage() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page, c.page != 0
}

// SetVoice selects the narration voice.
func (c *Controller) SetVoice(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = name
}

// Voice returns the selected voice name.
func (c *Controller) Voice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

// SetRate sets the speaking rate, clamped to [0.5, 2.0].
func (c *Controller) SetRate(r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = ClampRate(r)
}

// Rate returns the applied speaking rate.
func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// PlayPages starts narrating a paginated document at the given page and
// auto-advances through the remaining pages. An in-flight utterance is
// superseded.
func (c *Controller) PlayPages(ctx context.Context, n Narrator, startPage int) {
	gen := c.begin()
	go c.speakPage(ctx, n, startPage, gen)
}

// PlayText narrates plain text, capped at 10k characters. An in-flight
// utterance is superseded.
func (c *Controller) PlayText(ctx context.Context, text string) {
	gen := c.begin()
	go func() {
		text := strings.TrimSpace(text)
		if len(text) > maxTextChars {
			text = text[:maxTextChars]
		}
		if text == "" {
			c.finish(gen)
			return
		}
		c.utter(ctx, text, 0, gen, func() { c.finish(gen) })
	}()
}

// Pause pauses narration in place; the utterance is not cancelled.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != Speaking {
		c.mu.Unlock()
		return
	}
	c.state = Paused
	c.mu.Unlock()
	if err := c.slot.Pause(); err != nil {
		c.logger.Debug("pause failed", "error", err)
	}
	c.notify()
}

// Resume continues a paused utterance.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.state != Paused {
		c.mu.Unlock()
		return
	}
	c.state = Speaking
	c.mu.Unlock()
	if err := c.slot.Resume(); err != nil {
		c.logger.Debug("resume failed", "error", err)
	}
	c.notify()
}

// Stop cancels any in-flight narration and returns to idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	c.state = Idle
	c.page = 0
	c.mu.Unlock()
	c.slot.Cancel()
	c.notify()
}

// begin supersedes any running playback and marks a new generation.
func (c *Controller) begin() int {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = Speaking
	c.page = 0
	c.mu.Unlock()
	c.notify()
	return gen
}

// finish transitions to idle after natural completion or a synthesis
// error, unless a newer generation took over.
func (c *Controller) finish(gen int) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.page = 0
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// speakPage narrates one page, skipping empty pages forward, and
// auto-advances on natural completion until the document is exhausted.
func (c *Controller) speakPage(ctx context.Context, n Narrator, page int, gen int) {
	if c.stale(gen) {
		return
	}

	text, err := n.PageText(ctx, page)
	if err != nil {
		c.logger.Debug("page text extraction failed", "page", page, "error", err)
		c.finish(gen)
		return
	}
	text = strings.TrimSpace(text)

	if text == "" {
		// Skip forward without invoking the synthesizer.
		if page < n.PageCount() {
			c.advance(ctx, n, page+1, gen)
		} else {
			c.finish(gen)
		}
		return
	}

	c.utter(ctx, text, page, gen, func() {
		if page < n.PageCount() {
			c.advance(ctx, n, page+1, gen)
		} else {
			c.finish(gen)
		}
	})
}

// advance navigates to the next page, waits for it to mount, then
// narrates it.
func (c *Controller) advance(ctx context.Context, n Narrator, page int, gen int) {
	if c.stale(gen) {
		return
	}
	n.GoToPage(page)
	select {
	case <-time.After(c.mountDelay):
	case <-ctx.Done():
		c.finish(gen)
		return
	}
	c.speakPage(ctx, n, page, gen)
}

// utter speaks one extracted text span through the slot and runs next
// on natural completion.
func (c *Controller) utter(ctx context.Context, text string, page int, gen int, next func()) {
	c.mu.Lock()
	opts := Options{Voice: c.voice, Rate: c.rate}
	c.mu.Unlock()

	h, err := c.synth.Speak(ctx, text, opts)
	if err != nil {
		c.logger.Warn("narration failed to start", "error", err)
		c.finish(gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		h.Cancel()
		return
	}
	c.slot.Acquire(h)
	c.state = Speaking
	c.page = page
	c.mu.Unlock()
	c.notify()

	err = <-h.Done()
	c.slot.Release(h)
	if c.stale(gen) {
		return
	}
	if err != nil {
		// Synthesis failure terminates playback without surfacing a
		// blocking error; visual reading continues.
		c.logger.Debug("utterance ended with error", "error", err)
		c.finish(gen)
		return
	}
	next()
}
