//go:build !gui

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/folio-reader/folio/internal/config"
	"github.com/folio-reader/folio/internal/position"
	"github.com/folio-reader/folio/internal/render/paginated"
	"github.com/folio-reader/folio/internal/shell"
	"github.com/folio-reader/folio/internal/speech"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	voice := flag.String("voice", "", "Narration voice name")
	rate := flag.Float64("rate", 0, "Narration rate (0.5-2.0)")
	formatTag := flag.String("format", "", "Force a format (pdf, epub, txt)")
	title := flag.String("title", "", "Display title (defaults to the file name)")
	debug := flag.Bool("debug", false, "Write a debug log to the state directory")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Folio - Terminal Book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  folio [options] <file-or-url>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  folio book.epub                 Read an EPUB\n")
		fmt.Fprintf(os.Stderr, "  folio paper.pdf                 Read a PDF\n")
		fmt.Fprintf(os.Stderr, "  folio https://example.com/a.txt Read from a URL\n")
		fmt.Fprintf(os.Stderr, "  folio -voice en-gb book.epub    Read aloud with a voice\n")
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  +/-/0    Zoom in/out/reset\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Previous/next page\n")
		fmt.Fprintf(os.Stderr, "  SPACE    Read aloud / pause / resume\n")
		fmt.Fprintf(os.Stderr, "  s        Stop reading aloud\n")
		fmt.Fprintf(os.Stderr, "  v        Voice and rate settings\n")
		fmt.Fprintf(os.Stderr, "  TAB      Page sidebar (PDF)\n")
		fmt.Fprintf(os.Stderr, "  m        Single page / continuous scroll (PDF)\n")
		fmt.Fprintf(os.Stderr, "  q        Quit\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("folio %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided. Provide a file or a URL.")
		fmt.Fprintln(os.Stderr, "Try: folio -h")
		os.Exit(1)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load config '%s': %v\n", path, err)
		os.Exit(1)
	}
	if *voice != "" {
		cfg.Voice = *voice
	}
	if *rate != 0 {
		cfg.Rate = speech.ClampRate(*rate)
	}

	logger := slog.New(slog.DiscardHandler)
	if *debug {
		if err := os.MkdirAll(cfg.StateDir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(cfg.StateDir, "folio.log"),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				defer f.Close()
				logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
			}
		}
	}

	desc, err := describe(flag.Arg(0), *title, *formatTag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, err := position.Open(cfg.StateDir, position.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open state directory: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var synth speech.Synthesizer
	if s, err := speech.NewExecSynthesizer(cfg.SpeechCommand); err == nil {
		synth = s
	} else {
		logger.Info("narration unavailable", "error", err)
	}

	m := shell.New(shell.Deps{
		Descriptor: desc,
		Positions:  store,
		Engine:     paginated.NewPDFEngine(),
		Synth:      synth,
		Logger:     logger,
		Scale:      cfg.Scale,
		Voice:      cfg.Voice,
		Rate:       cfg.Rate,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
