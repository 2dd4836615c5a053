//go:build windows

package speech

import "context"

// ExecSynthesizer is not supported on Windows; narration is disabled.
type ExecSynthesizer struct{}

func NewExecSynthesizer(command string) (*ExecSynthesizer, error) {
	return nil, ErrUnavailable
}

func (s *ExecSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	return nil, ErrUnavailable
}

func (s *ExecSynthesizer) Speak(ctx context.Context, text string, opts Options) (Handle, error) {
	return nil, ErrUnavailable
}
