// Package speech drives read-aloud narration: a synthesizer capability
// boundary, a single-slot utterance holder, and the playback state
// machine that advances the active renderer in lockstep.
package speech

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable indicates no speech synthesizer is present on this
// system. Narration degrades to a disabled control; reading is
// unaffected.
var ErrUnavailable = errors.New("speech: synthesizer unavailable")

// Voice is one synthesis voice offered by the platform.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Options selects voice and speaking rate for one utterance.
type Options struct {
	Voice string
	Rate  float64 // multiplier, clamped to [0.5, 2.0]
}

const (
	// MinRate and MaxRate bound the speaking-rate multiplier.
	MinRate = 0.5
	MaxRate = 2.0
)

// ClampRate bounds a requested rate to the supported range.
func ClampRate(r float64) float64 {
	if r < MinRate {
		return MinRate
	}
	if r > MaxRate {
		return MaxRate
	}
	return r
}

// Handle controls one in-flight utterance.
type Handle interface {
	// Done yields exactly one value: nil on natural completion, an
	// error on synthesis failure or cancellation.
	Done() <-chan error
	Pause() error
	Resume() error
	Cancel()
}

// Synthesizer is the platform speech capability. The voice list is
// populated asynchronously and may be empty.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, opts Options) (Handle, error)
}

// Slot is the single-slot holder for the process-wide utterance.
// Acquiring it for a new utterance revokes the previous holder, so at
// most one utterance is ever active and superseding is an explicit
// operation.
type Slot struct {
	mu      sync.Mutex
	current Handle
}

// Acquire installs h as the active utterance, cancelling any prior one.
func (s *Slot) Acquire(h Handle) {
	s.mu.Lock()
	prev := s.current
	s.current = h
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// Release clears the slot if h still owns it.
func (s *Slot) Release(h Handle) {
	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
}

// Cancel revokes the active utterance, if any.
func (s *Slot) Cancel() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// Pause pauses the active utterance in place.
func (s *Slot) Pause() error {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Pause()
}

// Resume resumes a paused utterance.
func (s *Slot) Resume() error {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Resume()
}
