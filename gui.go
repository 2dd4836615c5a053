//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/folio-reader/folio/internal/config"
	"github.com/folio-reader/folio/internal/format"
	"github.com/folio-reader/folio/internal/position"
	"github.com/folio-reader/folio/internal/render/paginated"
	"github.com/folio-reader/folio/internal/render/reflow"
	"github.com/folio-reader/folio/internal/render/text"
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
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Folio - GUI Book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  folio [options] <file-or-url>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  SPACE    Read aloud / pause / resume\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Previous/next page\n")
		fmt.Fprintf(os.Stderr, "  +/-      Zoom\n")
		fmt.Fprintf(os.Stderr, "  F        Fullscreen\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit\n")
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

	desc, err := describe(flag.Arg(0), "", *formatTag)
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

	var ctrl *speech.Controller
	if synth, err := speech.NewExecSynthesizer(cfg.SpeechCommand); err == nil {
		ctrl = speech.NewController(synth, speech.WithControllerLogger(logger))
		ctrl.SetRate(cfg.Rate)
		if cfg.Voice != "" {
			ctrl.SetVoice(cfg.Voice)
		}
	}

	a := app.New()
	w := a.NewWindow("folio - " + desc.Title)

	statusLabel := widget.NewLabel("Opening " + desc.Title + "…")
	statusLabel.Alignment = fyne.TextAlignCenter
	controlsLabel := widget.NewLabel("SPACE: read aloud  ←/→: page  +/-: zoom  F: fullscreen  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	bodyLabel := widget.NewLabel("")
	bodyLabel.Wrapping = fyne.TextWrapWord
	scroll := container.NewVScroll(bodyLabel)

	mainContainer := container.NewBorder(statusLabel, controlsLabel, nil, nil, scroll)

	done := make(chan bool)
	var closeOnce sync.Once

	ctx := context.Background()
	kind := format.Resolve(desc)
	rec, _ := store.Load(desc.ID)

	var pag *paginated.View
	var ref *reflow.Rendition
	var txt *text.View

	updateDisplay := func() {
		switch {
		case pag != nil:
			var sb strings.Builder
			for n := 1; n <= pag.PageCount(); n++ {
				if p := pag.Page(n); p != nil {
					sb.WriteString(p.Text)
				} else {
					sb.WriteString(fmt.Sprintf("(page %d loading…)", n))
				}
				sb.WriteString("\n\n")
			}
			bodyLabel.SetText(sb.String())
			statusLabel.SetText(fmt.Sprintf("Page %d/%d | %d%%",
				pag.Current(), pag.PageCount(), int(pag.Scale()*100)))
		case ref != nil:
			cur, total := ref.PageInfo()
			bodyLabel.SetText(strings.Join(ref.Content(), "\n"))
			statusLabel.SetText(fmt.Sprintf("%s | Page %d/%d | %d%%",
				ref.ChapterTitle(), cur, total, ref.Scale()))
		case txt != nil:
			bodyLabel.SetText(txt.Text())
			statusLabel.SetText(fmt.Sprintf("%d%%", int(txt.Scale()*100)))
		}
		if ctrl != nil {
			switch ctrl.State() {
			case speech.Speaking:
				statusLabel.SetText(statusLabel.Text + " [SPEAKING]")
			case speech.Paused:
				statusLabel.SetText(statusLabel.Text + " [PAUSED]")
			}
		}
	}

	fail := func(err error) {
		statusLabel.SetText("Could not open this book")
		bodyLabel.SetText(err.Error())
	}

	switch kind {
	case format.Paginated:
		doc, err := paginated.NewPDFEngine().Open(ctx, desc.Source)
		if err != nil {
			fail(err)
			break
		}
		pag = paginated.NewView(doc, paginated.Config{
			Logger: logger,
			OnRendered: func(page int) {
				fyne.Do(updateDisplay)
			},
			OnVisible: func(page int) {
				store.Save(desc.ID, position.Page(page))
			},
			OnNavigate: func(page int) {
				store.Save(desc.ID, position.Page(page))
			},
		})
		// The GUI shows all pages in one scroll; render them all.
		for n := 1; n <= pag.PageCount(); n++ {
			pag.PageProximate(n)
		}
		if rec.Page != nil {
			pag.ResumeAt(*rec.Page)
		}
	case format.Reflowable:
		r, err := reflow.Open(ctx, desc.Source, reflow.Config{
			Logger: logger,
			OnRelocated: func(loc string) {
				store.Save(desc.ID, position.Locator(loc))
			},
		})
		if err != nil {
			fail(err)
			break
		}
		r.SetViewport(100, 40)
		if rec.Locator != nil {
			r.Display(*rec.Locator)
		} else {
			r.Display("")
		}
		ref = r
	case format.Plaintext:
		v, err := text.Open(ctx, desc.Source, text.Config{Logger: logger})
		if err != nil {
			fail(err)
			break
		}
		if rec.ScrollOffset != nil {
			v.ResumeAt(*rec.ScrollOffset)
		}
		txt = v
	default:
		fail(fmt.Errorf("cannot display %q", desc.Title))
	}

	narrate := func() {
		if ctrl == nil {
			return
		}
		switch ctrl.State() {
		case speech.Speaking:
			ctrl.Pause()
		case speech.Paused:
			ctrl.Resume()
		default:
			// Reflowable content is not narrated; locators move under
			// relayout while an utterance is in flight.
			switch {
			case pag != nil:
				ctrl.PlayPages(ctx, pag, pag.Current())
			case txt != nil:
				ctrl.PlayText(ctx, txt.Text())
			}
		}
		updateDisplay()
	}

	teardown := func() {
		if ctrl != nil {
			ctrl.Stop()
		}
		if pag != nil {
			pag.Close()
		}
		if ref != nil {
			ref.Close()
		}
		store.Flush()
		closeOnce.Do(func() { close(done) })
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeySpace:
			narrate()
		case fyne.KeyLeft:
			if pag != nil {
				pag.GoToPage(pag.Current() - 1)
			} else if ref != nil {
				ref.Prev()
			}
			updateDisplay()
		case fyne.KeyRight:
			if pag != nil {
				pag.GoToPage(pag.Current() + 1)
			} else if ref != nil {
				ref.Next()
			}
			updateDisplay()
		case fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())
		case fyne.KeyQ:
			teardown()
			a.Quit()
		}
	})

	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case '+', '=':
			switch {
			case pag != nil:
				pag.SetScale(pag.Scale() + 0.2)
			case ref != nil:
				ref.SetScale(ref.Scale() + reflow.ScaleStep)
			case txt != nil:
				txt.SetScale(txt.Scale() + 0.2)
			}
			updateDisplay()
		case '-':
			switch {
			case pag != nil:
				pag.SetScale(pag.Scale() - 0.2)
			case ref != nil:
				ref.SetScale(ref.Scale() - reflow.ScaleStep)
			case txt != nil:
				txt.SetScale(txt.Scale() - 0.2)
			}
			updateDisplay()
		}
	})

	// Track the scroll offset for plaintext resume.
	if txt != nil {
		go func() {
			for {
				select {
				case <-done:
					return
				default:
					time.Sleep(500 * time.Millisecond)
					offset := float64(scroll.Offset.Y)
					if offset != txt.ScrollOffset() {
						txt.SetScrollOffset(offset)
						store.Save(desc.ID, position.ScrollOffset(offset))
					}
				}
			}
		}()
	}

	w.SetOnClosed(teardown)

	w.Resize(fyne.NewSize(800, 600))
	w.SetContent(mainContainer)

	go func() {
		time.Sleep(100 * time.Millisecond)
		fyne.Do(updateDisplay)
	}()

	w.ShowAndRun()
}
