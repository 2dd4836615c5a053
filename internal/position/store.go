// Package position persists per-document reading positions on the
// local device.
package position

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	stateFileName   = "positions.json"
	defaultDebounce = 500 * time.Millisecond
)

// Record is the stored position for one document. Fields are
// format-dependent; a nil field means no renderer has reported that
// mode's position yet.
type Record struct {
	Page         *int      `json:"page,omitempty"`
	Locator      *string   `json:"locator,omitempty"`
	ScrollOffset *float64  `json:"scrollOffset,omitempty"`
	LastReadAt   time.Time `json:"lastReadAt"`
}

// Update carries the fields a renderer wants to change. Nil fields are
// left untouched in the stored record.
type Update struct {
	Page         *int
	Locator      *string
	ScrollOffset *float64
}

// Page builds an update carrying only a page number.
func Page(n int) Update { return Update{Page: &n} }

// Locator builds an update carrying only a resumable locator.
func Locator(l string) Update { return Update{Locator: &l} }

// ScrollOffset builds an update carrying only a scroll offset.
func ScrollOffset(y float64) Update { return Update{ScrollOffset: &y} }

// Store manages the position state file. Saves within the debounce
// window coalesce into a single write: one pending slot, one timer.
// A new save while a flush is pending replaces the slot payload and
// never schedules a second flush, so the last call in a burst wins.
// Storage errors are logged and swallowed; they never reach callers.
type Store struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	data    map[string]Record
	dirty   bool
	timer   *time.Timer
	flushed chan struct{} // closed and replaced on each flush, for tests
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source for LastReadAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or loads the store at dir/positions.json. A missing or
// corrupt state file starts empty rather than failing.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	s := &Store{
		path:     filepath.Join(dir, stateFileName),
		debounce: defaultDebounce,
		logger:   slog.Default(),
		now:      time.Now,
		data:     make(map[string]Record),
		flushed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		s.logger.Warn("position state unreadable, starting empty", "path", s.path, "error", err)
		s.data = make(map[string]Record)
	}
	return s, nil
}

// DefaultDir returns XDG_STATE_HOME/folio or ~/.local/state/folio.
func DefaultDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "folio")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "folio")
}

// Save merges upd into the record for id, stamps LastReadAt, and
// schedules a debounced flush.
func (s *Store) Save(id string, upd Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.data[id]
	if upd.Page != nil {
		p := *upd.Page
		rec.Page = &p
	}
	if upd.Locator != nil {
		l := *upd.Locator
		rec.Locator = &l
	}
	if upd.ScrollOffset != nil {
		y := *upd.ScrollOffset
		rec.ScrollOffset = &y
	}
	rec.LastReadAt = s.now()
	s.data[id] = rec
	s.dirty = true

	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.flushTimer)
	}
	// A pending timer already covers this save: the slot payload was
	// just replaced, no second flush is scheduled.
}

// Load returns the record for id, if any.
func (s *Store) Load(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[id]
	return rec, ok
}

// Flush writes any pending state out immediately and cancels the
// debounce timer.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.flushLocked()
}

// Close flushes pending state synchronously before teardown, so the
// last few seconds of reading progress are not lost.
func (s *Store) Close() {
	s.Flush()
}

func (s *Store) flushTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	s.flushLocked()
}

func (s *Store) flushLocked() {
	if !s.dirty {
		return
	}
	s.dirty = false
	if err := s.persist(); err != nil {
		s.logger.Warn("failed to save reading position", "path", s.path, "error", err)
	}
	close(s.flushed)
	s.flushed = make(chan struct{})
}

// Flushed returns a channel closed at the next flush. Test hook.
func (s *Store) Flushed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
