// Package shell hosts the terminal reading surface: a bubbletea model
// that resolves a book's format, opens the matching renderer, restores
// the last reading position and wires scrolling, zoom and narration
// controls together.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/folio-reader/folio/internal/book"
	"github.com/folio-reader/folio/internal/format"
	"github.com/folio-reader/folio/internal/position"
	"github.com/folio-reader/folio/internal/render"
	"github.com/folio-reader/folio/internal/render/paginated"
	"github.com/folio-reader/folio/internal/render/reflow"
	"github.com/folio-reader/folio/internal/render/text"
	"github.com/folio-reader/folio/internal/speech"
)

// Deps carries everything the shell needs from its host. Positions and
// Logger are required; Engine and Synth may be nil, in which case PDF
// books fail to open and narration controls are hidden.
type Deps struct {
	Descriptor book.Descriptor
	Positions  *position.Store
	Engine     paginated.Engine
	Synth      speech.Synthesizer
	Logger     *slog.Logger

	// OnDelete is invoked when the user removes a broken book from the
	// failure view. May be nil.
	OnDelete func(id string)

	Scale float64
	Voice string
	Rate  float64
}

type phase int

const (
	phaseLoading phase = iota
	phaseReading
	phaseFailed
)

// viewMode mirrors the paginated display toggle: a single page at a
// time or a continuous scroll of all pages.
type viewMode int

const (
	modeScroll viewMode = iota
	modeSingle
)

const (
	chromeLines    = 2  // status bar and controls line
	sidebarWidth   = 14 // page index column
	placeholdLines = 20 // box height for pages not yet rendered
)

// Messages delivered into the update loop.
type (
	openedMsg struct {
		pag *paginated.View
		ref *reflow.Rendition
		txt *text.View
	}
	openFailedMsg struct{ err error }
	voicesMsg     struct{ voices []speech.Voice }

	// Renderer and narration callbacks run on their own goroutines and
	// are bridged through the event channel.
	pageRenderedMsg   struct{ page int }
	navigateMsg       struct{ page int }
	narrationEventMsg struct{}
)

// Model is the bubbletea model for a single open book.
type Model struct {
	deps Deps
	kind format.Kind
	log  *slog.Logger

	phase phase
	err   error

	width  int
	height int
	vp     viewport.Model

	pag *paginated.View
	ref *reflow.Rendition
	txt *text.View

	// page top offsets (in content lines) for proximity checks,
	// rebuilt whenever paginated content changes
	pageTops []int

	ctrl     *speech.Controller
	voices   []speech.Voice
	voiceIdx int

	resuming     bool
	mode         viewMode
	showSidebar  bool
	showSettings bool
	deleted      bool
	quitting     bool

	events chan tea.Msg
}

// New builds a shell model for the given book. The renderer is opened
// asynchronously from Init.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Rate == 0 {
		deps.Rate = 1.0
	}
	if deps.Scale == 0 {
		deps.Scale = 1.0
	}
	m := Model{
		deps:   deps,
		kind:   format.Resolve(deps.Descriptor),
		log:    deps.Logger.With("book", deps.Descriptor.ID),
		width:  80,
		height: 24,
		vp:     viewport.New(80, 22),
		events: make(chan tea.Msg, 64),
	}
	if deps.Positions != nil {
		_, m.resuming = deps.Positions.Load(deps.Descriptor.ID)
	}
	if deps.Synth != nil {
		m.ctrl = speech.NewController(deps.Synth,
			speech.WithControllerLogger(m.log),
			speech.WithOnChange(func() { m.post(narrationEventMsg{}) }),
		)
		m.ctrl.SetRate(deps.Rate)
		if deps.Voice != "" {
			m.ctrl.SetVoice(deps.Voice)
		}
	}
	return m
}

// post delivers a callback event without ever blocking the caller.
func (m Model) post(msg tea.Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

func waitEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-ch }
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.openCmd(), waitEvent(m.events)}
	if m.deps.Synth != nil {
		cmds = append(cmds, m.loadVoicesCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) openCmd() tea.Cmd {
	deps := m.deps
	kind := m.kind
	events := m.events
	rec, _ := deps.Positions.Load(deps.Descriptor.ID)

	return func() tea.Msg {
		ctx := context.Background()
		switch kind {
		case format.Paginated:
			if deps.Engine == nil {
				return openFailedMsg{render.NewLoadError(kind.String(),
					errors.New("no paginated engine configured"))}
			}
			doc, err := deps.Engine.Open(ctx, deps.Descriptor.Source)
			if err != nil {
				return openFailedMsg{err}
			}
			v := paginated.NewView(doc, paginated.Config{
				Logger: deps.Logger,
				OnRendered: func(page int) {
					post(events, pageRenderedMsg{page: page})
				},
				OnVisible: func(page int) {
					deps.Positions.Save(deps.Descriptor.ID, position.Page(page))
				},
				OnNavigate: func(page int) {
					deps.Positions.Save(deps.Descriptor.ID, position.Page(page))
					post(events, navigateMsg{page: page})
				},
			})
			v.SetScale(deps.Scale)
			if rec.Page != nil {
				v.ResumeAt(*rec.Page)
			}
			return openedMsg{pag: v}

		case format.Reflowable:
			r, err := reflow.Open(ctx, deps.Descriptor.Source, reflow.Config{
				Logger: deps.Logger,
				OnRelocated: func(loc string) {
					deps.Positions.Save(deps.Descriptor.ID, position.Locator(loc))
				},
			})
			if err != nil {
				return openFailedMsg{err}
			}
			if rec.Locator != nil {
				r.Display(*rec.Locator)
			} else {
				r.Display("")
			}
			return openedMsg{ref: r}

		case format.Plaintext:
			v, err := text.Open(ctx, deps.Descriptor.Source, text.Config{
				Logger: deps.Logger,
				OnScroll: func(offset float64) {
					deps.Positions.Save(deps.Descriptor.ID, position.ScrollOffset(offset))
				},
			})
			if err != nil {
				return openFailedMsg{err}
			}
			if rec.ScrollOffset != nil {
				v.ResumeAt(*rec.ScrollOffset)
			}
			return openedMsg{txt: v}

		default:
			return openFailedMsg{render.NewLoadError("unsupported",
				fmt.Errorf("cannot display %q", deps.Descriptor.Title))}
		}
	}
}

func post(ch chan tea.Msg, msg tea.Msg) {
	select {
	case ch <- msg:
	default:
	}
}

func (m Model) loadVoicesCmd() tea.Cmd {
	synth := m.deps.Synth
	return func() tea.Msg {
		voices, err := synth.Voices(context.Background())
		if err != nil {
			return voicesMsg{}
		}
		return voicesMsg{voices: voices}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = m.contentWidth()
		m.vp.Height = max(1, msg.Height-chromeLines)
		if m.ref != nil {
			m.ref.SetViewport(m.vp.Width, m.vp.Height)
		}
		m.refreshContent()
		m.checkProximity()
		return m, nil

	case openedMsg:
		m.phase = phaseReading
		m.pag, m.ref, m.txt = msg.pag, msg.ref, msg.txt
		if m.txt != nil {
			m.txt.SetScale(m.deps.Scale)
		}
		if m.ref != nil {
			m.ref.SetViewport(m.contentWidth(), max(1, m.height-chromeLines))
		}
		m.refreshContent()
		if m.pag != nil {
			m.scrollToPage(m.pag.Current())
			m.checkProximity()
		}
		if m.txt != nil {
			m.vp.SetYOffset(int(m.txt.ScrollOffset()))
		}
		return m, nil

	case openFailedMsg:
		m.phase = phaseFailed
		m.err = msg.err
		m.log.Error("open failed", "error", msg.err)
		return m, nil

	case voicesMsg:
		m.voices = msg.voices
		m.voiceIdx = 0
		for i, v := range m.voices {
			if m.deps.Voice != "" && v.Name == m.deps.Voice {
				m.voiceIdx = i
				break
			}
			if m.deps.Voice == "" && v.Default {
				m.voiceIdx = i
			}
		}
		if m.ctrl != nil && len(m.voices) > 0 {
			m.ctrl.SetVoice(m.voices[m.voiceIdx].Name)
		}
		return m, waitEvent(m.events)

	case pageRenderedMsg:
		m.refreshContent()
		m.checkProximity()
		return m, waitEvent(m.events)

	case navigateMsg:
		m.refreshContent()
		m.scrollToPage(msg.page)
		m.checkProximity()
		return m, waitEvent(m.events)

	case narrationEventMsg:
		if m.pag != nil && m.ctrl != nil {
			m.pag.SetSuppressTracking(m.ctrl.Active())
		}
		m.refreshContent()
		return m, waitEvent(m.events)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	m.afterScroll()
	return m, cmd
}

func (m *Model) handleSettingsKey(key string) bool {
	switch key {
	case "v", "esc":
		m.showSettings = false
	case "j", "down":
		if len(m.voices) > 0 {
			m.voiceIdx = (m.voiceIdx + 1) % len(m.voices)
			m.ctrl.SetVoice(m.voices[m.voiceIdx].Name)
		}
	case "k", "up":
		if len(m.voices) > 0 {
			m.voiceIdx = (m.voiceIdx - 1 + len(m.voices)) % len(m.voices)
			m.ctrl.SetVoice(m.voices[m.voiceIdx].Name)
		}
	case "]":
		m.ctrl.SetRate(m.ctrl.Rate() + 0.1)
	case "[":
		m.ctrl.SetRate(m.ctrl.Rate() - 0.1)
	default:
		return false
	}
	return true
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "q" || key == "ctrl+c" {
		m.quitting = true
		m.teardown()
		return m, tea.Quit
	}

	if m.phase == phaseFailed {
		switch key {
		case "d":
			if m.deps.OnDelete != nil {
				m.deps.OnDelete(m.deps.Descriptor.ID)
				m.deleted = true
			}
			m.quitting = true
			m.teardown()
			return m, tea.Quit
		case "esc":
			m.quitting = true
			m.teardown()
			return m, tea.Quit
		}
		return m, nil
	}

	if m.phase != phaseReading {
		return m, nil
	}

	if m.showSettings && m.ctrl != nil {
		mm := m
		if mm.handleSettingsKey(key) {
			return mm, nil
		}
	}

	switch key {
	case "+", "=":
		m.zoom(+1)
		return m, nil
	case "-":
		m.zoom(-1)
		return m, nil
	case "0":
		m.zoomReset()
		return m, nil

	case "left", "h":
		m.pageBack()
		return m, nil
	case "right", "l":
		m.pageForward()
		return m, nil

	case " ":
		return m, m.toggleSpeech()
	case "s":
		if m.ctrl != nil {
			m.ctrl.Stop()
		}
		return m, nil

	case "tab":
		if m.pag != nil {
			m.showSidebar = !m.showSidebar
			m.vp.Width = m.contentWidth()
			m.refreshContent()
		}
		return m, nil

	case "m":
		if m.pag != nil {
			if m.mode == modeScroll {
				m.mode = modeSingle
			} else {
				m.mode = modeScroll
			}
			m.refreshContent()
			m.scrollToPage(m.pag.Current())
			m.checkProximity()
		}
		return m, nil

	case "v":
		if m.ctrl != nil {
			m.showSettings = !m.showSettings
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	m.afterScroll()
	return m, cmd
}

// afterScroll propagates a viewport movement to whatever the scroll
// position means for the open renderer.
func (m *Model) afterScroll() {
	switch {
	case m.pag != nil:
		m.checkProximity()
		if m.mode == modeScroll && !m.suppressed() {
			if page, ok := m.topmostVisiblePage(); ok {
				m.pag.PageProximate(page)
				m.pag.PageVisible(page)
			}
		}
	case m.txt != nil:
		m.txt.SetScrollOffset(float64(m.vp.YOffset))
	}
}

func (m Model) suppressed() bool {
	return m.ctrl != nil && m.ctrl.Active()
}

func (m *Model) zoom(dir int) {
	switch {
	case m.pag != nil:
		m.pag.SetScale(m.pag.Scale() + float64(dir)*0.2)
	case m.ref != nil:
		m.ref.SetScale(m.ref.Scale() + dir*reflow.ScaleStep)
	case m.txt != nil:
		m.txt.SetScale(m.txt.Scale() + float64(dir)*0.2)
	}
	m.refreshContent()
}

func (m *Model) zoomReset() {
	switch {
	case m.pag != nil:
		m.pag.SetScale(1.0)
	case m.ref != nil:
		m.ref.SetScale(100)
	case m.txt != nil:
		m.txt.SetScale(1.0)
	}
	m.refreshContent()
}

func (m *Model) pageBack() {
	switch {
	case m.pag != nil:
		m.pag.GoToPage(m.pag.Current() - 1)
	case m.ref != nil:
		m.ref.Prev()
		m.refreshContent()
	}
}

func (m *Model) pageForward() {
	switch {
	case m.pag != nil:
		m.pag.GoToPage(m.pag.Current() + 1)
	case m.ref != nil:
		m.ref.Next()
		m.refreshContent()
	}
}

func (m *Model) toggleSpeech() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	switch m.ctrl.State() {
	case speech.Speaking:
		m.ctrl.Pause()
	case speech.Paused:
		m.ctrl.Resume()
	default:
		// Reflowable content is not narrated; locators move under
		// relayout while an utterance is in flight.
		ctx := context.Background()
		switch {
		case m.pag != nil:
			m.ctrl.PlayPages(ctx, m.pag, m.pag.Current())
		case m.txt != nil:
			m.ctrl.PlayText(ctx, m.txt.Text())
		}
	}
	return nil
}

func (m *Model) teardown() {
	if m.ctrl != nil {
		m.ctrl.Stop()
	}
	if m.pag != nil {
		m.pag.Close()
	}
	if m.ref != nil {
		m.ref.Close()
	}
	if m.deps.Positions != nil {
		m.deps.Positions.Flush()
	}
}

func (m Model) contentWidth() int {
	w := m.width
	if m.showSidebar && m.pag != nil {
		w -= sidebarWidth
	}
	return max(20, w)
}

// --- paginated content layout ---

// refreshContent rebuilds the viewport content for the open renderer.
// For paginated books it also records each page's top line so that
// proximity checks can map scroll offsets back to pages.
func (m *Model) refreshContent() {
	switch {
	case m.pag != nil:
		content, tops := m.buildPages()
		m.pageTops = tops
		m.vp.SetContent(content)
	case m.ref != nil:
		m.vp.SetContent(strings.Join(m.ref.Content(), "\n"))
		m.vp.SetYOffset(0)
	case m.txt != nil:
		m.vp.SetContent(m.buildPlaintext())
	}
}

func (m *Model) buildPages() (string, []int) {
	count := m.pag.PageCount()
	inner := max(10, m.contentWidth()-4)

	first, last := 1, count
	if m.mode == modeSingle {
		first, last = m.pag.Current(), m.pag.Current()
	}

	// tops[n] is page n's first content line; the final entry marks the
	// end of the last page.
	var sb strings.Builder
	tops := make([]int, count+2)
	line := 0
	for n := first; n <= last; n++ {
		tops[n] = line
		var block string
		if p := m.pag.Page(n); p != nil {
			body := wrapToWidth(p.Text, inner)
			if body == "" {
				body = fmt.Sprintf("(page %d is blank)", n)
			}
			block = pageBoxStyle.Width(inner + 2).Render(body)
		} else {
			pad := strings.Repeat("\n", placeholdLines-1)
			block = pagePendingStyle.Width(inner + 2).Render(
				fmt.Sprintf("page %d …%s", n, pad))
		}
		sb.WriteString(block)
		sb.WriteString("\n")
		line += lipgloss.Height(block) + 1
	}
	tops[count+1] = line
	return sb.String(), tops
}

func (m *Model) buildPlaintext() string {
	inner := max(10, int(float64(m.contentWidth())/m.txt.Scale()))
	lines := m.txt.Lines()
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(wrapToWidth(l, inner))
		sb.WriteString("\n")
	}
	return sb.String()
}

// checkProximity announces every page whose box sits within one
// viewport height of the visible band. Pages only ever fire once; the
// paginated view latches them.
func (m *Model) checkProximity() {
	if m.pag == nil || m.mode != modeScroll || len(m.pageTops) == 0 {
		return
	}
	top := m.vp.YOffset
	h := m.vp.Height
	for n := 1; n <= m.pag.PageCount(); n++ {
		pageTop := m.pageTops[n]
		pageBottom := m.pageTops[n+1]
		if pageTop < top+2*h && pageBottom > top-h {
			m.pag.PageProximate(n)
		}
	}
}

// topmostVisiblePage finds the page whose box currently crosses the top
// edge of the viewport.
func (m *Model) topmostVisiblePage() (int, bool) {
	if len(m.pageTops) == 0 {
		return 0, false
	}
	top := m.vp.YOffset
	for n := 1; n < len(m.pageTops)-1; n++ {
		if m.pageTops[n] <= top && m.pageTops[n+1] > top {
			return n, true
		}
	}
	return 0, false
}

func (m *Model) scrollToPage(page int) {
	if m.pag == nil {
		return
	}
	if m.mode == modeSingle {
		m.vp.SetYOffset(0)
		return
	}
	if page >= 1 && page < len(m.pageTops)-1 {
		m.vp.SetYOffset(m.pageTops[page])
	}
}

// --- view ---

func (m Model) View() string {
	if m.quitting {
		if m.deleted {
			return "Removed from library.\n"
		}
		return ""
	}

	switch m.phase {
	case phaseLoading:
		note := "Opening " + m.deps.Descriptor.Title + "…"
		if m.resuming {
			note += " (resuming from last read)"
		}
		return statusStyle.Render(note)
	case phaseFailed:
		return m.failureView()
	}

	var sb strings.Builder
	sb.WriteString(m.statusLine())
	sb.WriteString("\n")

	body := m.vp.View()
	if m.showSidebar && m.pag != nil {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), body)
	}
	if m.showSettings && m.ctrl != nil {
		body = m.settingsView()
	}
	sb.WriteString(body)
	sb.WriteString("\n")
	sb.WriteString(controlsStyle.Render(m.controlsLine()))
	return sb.String()
}

func (m Model) statusLine() string {
	title := titleStyle.Render(m.deps.Descriptor.Title)

	var info string
	switch {
	case m.pag != nil:
		info = fmt.Sprintf("page %d/%d | %d%%",
			m.pag.Current(), m.pag.PageCount(), int(m.pag.Scale()*100))
	case m.ref != nil:
		cur, total := m.ref.PageInfo()
		info = fmt.Sprintf("%s | page %d/%d | %d%%",
			m.ref.ChapterTitle(), cur, total, m.ref.Scale())
	case m.txt != nil:
		info = fmt.Sprintf("%d%%", int(m.txt.Scale()*100))
	}

	narr := ""
	if m.ctrl != nil {
		switch m.ctrl.State() {
		case speech.Speaking:
			narr = speakingStyle.Render(" [SPEAKING]")
		case speech.Paused:
			narr = pausedStyle.Render(" [PAUSED]")
		}
	}

	return title + statusStyle.Render(info) + narr
}

func (m Model) controlsLine() string {
	parts := []string{"+/-/0: zoom", "←/→: page", "q: quit"}
	if m.ctrl != nil && m.ref == nil {
		parts = append(parts, "SPACE: read aloud", "s: stop", "v: voice")
	}
	if m.pag != nil {
		parts = append(parts, "TAB: pages", "m: view mode")
	}
	return strings.Join(parts, "  ")
}

func (m Model) sidebarView() string {
	var sb strings.Builder
	sb.WriteString("Pages\n")
	for n := 1; n <= m.pag.PageCount(); n++ {
		label := fmt.Sprintf("%3d", n)
		if n == m.pag.Current() {
			label = sidebarActiveStyle.Render(label + " ◂")
		}
		sb.WriteString(label)
		sb.WriteString("\n")
	}
	return sidebarStyle.Height(m.vp.Height).Render(sb.String())
}

func (m Model) settingsView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Narration"))
	sb.WriteString("\n\n")
	if len(m.voices) == 0 {
		sb.WriteString("No voices available.\n")
	}
	for i, v := range m.voices {
		marker := "  "
		if i == m.voiceIdx {
			marker = "▸ "
		}
		sb.WriteString(fmt.Sprintf("%s%s (%s)\n", marker, v.Name, v.Lang))
	}
	sb.WriteString(fmt.Sprintf("\nRate: %.1fx\n", m.ctrl.Rate()))
	sb.WriteString(controlsStyle.Render("\nj/k: voice  [/]: rate  v: close"))
	return settingsStyle.Render(sb.String())
}

func (m Model) failureView() string {
	var sb strings.Builder
	sb.WriteString(errorTitleStyle.Render("Could not open this book"))
	sb.WriteString("\n\n")

	var le *render.LoadError
	if errors.As(m.err, &le) {
		sb.WriteString(errorBodyStyle.Render(
			fmt.Sprintf("The %s renderer failed: %v", le.Format, le.Err)))
	} else if m.err != nil {
		sb.WriteString(errorBodyStyle.Render(m.err.Error()))
	}
	sb.WriteString("\n\n")

	hints := "ESC: close"
	if m.deps.OnDelete != nil {
		hints = "d: remove from library  " + hints
	}
	sb.WriteString(controlsStyle.Render(hints))
	return sb.String()
}

func wrapToWidth(s string, width int) string {
	if width < 1 {
		width = 1
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if len(cur)+1+len(w) > width {
				out = append(out, cur)
				cur = w
				continue
			}
			cur += " " + w
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}
