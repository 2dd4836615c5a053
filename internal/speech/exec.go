//go:build !windows

package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// espeak-ng speaks at 175 words per minute by default; rate multipliers
// scale from there.
const baseWordsPerMinute = 175

// ExecSynthesizer narrates by piping text to a speech command
// (espeak-ng, espeak, or the macOS say). Pause and resume stop and
// continue the process in place.
type ExecSynthesizer struct {
	command string
}

// NewExecSynthesizer locates a speech command on PATH. The command
// argument overrides autodetection; empty means probe espeak-ng,
// espeak, then say. Returns ErrUnavailable when nothing is found.
func NewExecSynthesizer(command string) (*ExecSynthesizer, error) {
	if command != "" {
		if _, err := exec.LookPath(command); err != nil {
			return nil, fmt.Errorf("%w: %s not on PATH", ErrUnavailable, command)
		}
		return &ExecSynthesizer{command: command}, nil
	}
	for _, cand := range []string{"espeak-ng", "espeak", "say"} {
		if _, err := exec.LookPath(cand); err == nil {
			return &ExecSynthesizer{command: cand}, nil
		}
	}
	return nil, ErrUnavailable
}

func (s *ExecSynthesizer) isSay() bool {
	return filepath.Base(s.command) == "say"
}

// Voices lists the voices the command offers.
func (s *ExecSynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	var cmd *exec.Cmd
	if s.isSay() {
		cmd = exec.CommandContext(ctx, s.command, "-v", "?")
	} else {
		cmd = exec.CommandContext(ctx, s.command, "--voices")
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("speech: list voices: %w", err)
	}
	if s.isSay() {
		return parseSayVoices(out), nil
	}
	return parseEspeakVoices(out), nil
}

// parseEspeakVoices reads `espeak-ng --voices` output:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-US           23M      english-us         en-us
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first { // header row
			first = false
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}

// parseSayVoices reads `say -v ?` output: "Alex    en_US  # comment".
func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// Voice names may contain spaces; the last field is the locale.
		voices = append(voices, Voice{
			Name: strings.Join(fields[:len(fields)-1], " "),
			Lang: fields[len(fields)-1],
		})
	}
	return voices
}

// Speak starts narrating text and returns a handle for the running
// utterance.
func (s *ExecSynthesizer) Speak(ctx context.Context, text string, opts Options) (Handle, error) {
	wpm := strconv.Itoa(int(ClampRate(opts.Rate) * baseWordsPerMinute))
	var args []string
	if s.isSay() {
		args = append(args, "-r", wpm)
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
	} else {
		args = append(args, "-s", wpm)
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
		args = append(args, "--stdin")
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("speech: start %s: %w", s.command, err)
	}

	h := &procHandle{cmd: cmd, done: make(chan error, 1)}
	go h.wait()
	return h, nil
}

// procHandle controls one speech subprocess.
type procHandle struct {
	cmd  *exec.Cmd
	done chan error
}

func (h *procHandle) wait() {
	h.done <- h.cmd.Wait()
}

func (h *procHandle) Done() <-chan error { return h.done }

func (h *procHandle) Pause() error {
	return h.cmd.Process.Signal(syscall.SIGSTOP)
}

func (h *procHandle) Resume() error {
	return h.cmd.Process.Signal(syscall.SIGCONT)
}

func (h *procHandle) Cancel() {
	// A SIGSTOPped process must be continued before the kill lands.
	h.cmd.Process.Signal(syscall.SIGCONT)
	h.cmd.Process.Kill()
}
