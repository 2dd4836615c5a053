// Package render holds the error taxonomy shared by the renderers.
package render

import (
	"errors"
	"fmt"
)

// ErrEngineUnavailable indicates a required rendering engine is
// missing. Renderers wrap it in a LoadError; the shell degrades to its
// error fallback rather than crashing.
var ErrEngineUnavailable = errors.New("render: engine unavailable")

// LoadError is the terminal per-document failure: content that is
// unreadable, unreachable, or malformed, or an engine that cannot
// serve it. It surfaces to the reader shell and no further.
type LoadError struct {
	Format string // renderer family that failed
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("render: load %s document: %v", e.Format, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err as a LoadError for the given format.
func NewLoadError(format string, err error) *LoadError {
	return &LoadError{Format: format, Err: err}
}

// IsLoadError reports whether err is (or wraps) a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
