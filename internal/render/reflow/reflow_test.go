package reflow

import (
	"fmt"
	"strings"
	"testing"
)

// testRendition builds a rendition over synthetic chapters, bypassing
// the epub container.
func testRendition(onRelocated func(string), chapters ...[]string) *Rendition {
	r := &Rendition{
		scale: 100,
		cfg:   Config{OnRelocated: onRelocated},
	}
	r.cfg.defaults()
	for i, words := range chapters {
		r.chapters = append(r.chapters, chapter{
			title: fmt.Sprintf("Chapter %d", i+1),
			words: words,
		})
	}
	return r
}

func words(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("w%03d", i)
	}
	return out
}

func TestClampScale(t *testing.T) {
	tests := []struct{ in, want int }{
		{205, 200},
		{600, 200},
		{45, 50},
		{0, 50},
		{-10, 50},
		{100, 100},
		{137, 130}, // snapped to the step
		{150, 150},
	}
	for _, tt := range tests {
		if got := ClampScale(tt.in); got != tt.want {
			t.Errorf("ClampScale(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWrapWords(t *testing.T) {
	lines := wrapWords([]string{"alpha", "beta", "gamma", "d"}, 11)
	want := []string{"alpha beta", "gamma d"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLayoutAndNavigation(t *testing.T) {
	var locators []string
	r := testRendition(func(l string) { locators = append(locators, l) }, words(100))
	r.SetViewport(20, 5)

	_, total := r.PageInfo()
	if total < 2 {
		t.Fatalf("total pages = %d, want multiple", total)
	}

	r.Display("")
	cur, _ := r.PageInfo()
	if cur != 1 {
		t.Errorf("page after display = %d, want 1", cur)
	}

	r.Next()
	cur, _ = r.PageInfo()
	if cur != 2 {
		t.Errorf("page after next = %d, want 2", cur)
	}

	r.Prev()
	cur, _ = r.PageInfo()
	if cur != 1 {
		t.Errorf("page after prev = %d, want 1", cur)
	}

	// Every navigation reported a locator.
	if len(locators) != 3 {
		t.Errorf("%d relocated events, want 3", len(locators))
	}
	for _, l := range locators {
		if l == "" {
			t.Error("empty locator reported")
		}
	}
}

func TestPrevAtStartAndNextAtEndNoOp(t *testing.T) {
	events := 0
	r := testRendition(func(string) { events++ }, words(10))
	r.SetViewport(200, 50) // everything fits on one page

	r.Prev()
	r.Next()
	if events != 0 {
		t.Errorf("%d relocated events for no-op navigation, want 0", events)
	}
}

func TestDisplayResumesAtLocator(t *testing.T) {
	r := testRendition(nil, words(100))
	r.SetViewport(20, 5)

	r.Display("")
	r.Next()
	r.Next()
	saved := r.Locator()
	page, _ := r.PageInfo()

	r2 := testRendition(nil, words(100))
	r2.SetViewport(20, 5)
	r2.Display(saved)
	got, _ := r2.PageInfo()
	if got != page {
		t.Errorf("resumed at page %d, want %d", got, page)
	}
}

func TestDisplayUnresolvableLocatorFallsBackToStart(t *testing.T) {
	r := testRendition(nil, words(50))
	r.SetViewport(20, 5)

	for _, loc := range []string{"garbage", "folio:99:9999", "folio:-1:2", "cfi(/6/4)"} {
		r.Display(loc)
		cur, _ := r.PageInfo()
		if cur != 1 {
			t.Errorf("Display(%q) landed on page %d, want 1", loc, cur)
		}
	}
}

func TestScaleChangePreservesPosition(t *testing.T) {
	r := testRendition(nil, words(200))
	r.SetViewport(40, 10)
	r.Display("")
	r.Next()
	r.Next()
	before := r.Locator()

	if got := r.SetScale(150); got != 150 {
		t.Fatalf("SetScale(150) = %d", got)
	}
	// Re-layout happened, position did not move.
	if r.Locator() != before {
		t.Errorf("locator after scale change = %q, want %q", r.Locator(), before)
	}

	// The locator still resolves to a page containing the position.
	ref := r.pages[r.pos]
	if ref.chapter != r.curChapter || ref.word > r.curWord {
		t.Errorf("current page starts at %d:%d, after position %d:%d",
			ref.chapter, ref.word, r.curChapter, r.curWord)
	}
}

func TestScaleClampAndStep(t *testing.T) {
	r := testRendition(nil, words(20))
	r.SetViewport(20, 5)

	if got := r.SetScale(500); got != MaxScale {
		t.Errorf("SetScale(500) = %d, want %d", got, MaxScale)
	}
	if got := r.SetScale(5); got != MinScale {
		t.Errorf("SetScale(5) = %d, want %d", got, MinScale)
	}
	if got := r.SetScale(117); got != 110 {
		t.Errorf("SetScale(117) = %d, want 110", got)
	}
}

func TestLocatorRoundTrip(t *testing.T) {
	loc := formatLocator(3, 42)
	ch, w, ok := parseLocator(loc)
	if !ok || ch != 3 || w != 42 {
		t.Errorf("parseLocator(%q) = (%d, %d, %v), want (3, 42, true)", loc, ch, w, ok)
	}

	if _, _, ok := parseLocator(""); ok {
		t.Error("empty locator must not parse")
	}
}

func TestContentShowsCurrentPageWords(t *testing.T) {
	r := testRendition(nil, words(100))
	r.SetViewport(20, 5)
	r.Display("")

	first := strings.Join(r.Content(), " ")
	if !strings.Contains(first, "w000") {
		t.Errorf("first page content %q missing first word", first)
	}

	r.Next()
	second := strings.Join(r.Content(), " ")
	if strings.Contains(second, "w000") {
		t.Errorf("second page content %q still shows first word", second)
	}
}

func TestTextFromMarkup(t *testing.T) {
	markup := `<html><head><style>p{}</style></head><body>
		<h1>The Voyage</h1>
		<p>Call me <b>Ishmael</b>.</p>
		<script>ignore();</script>
	</body></html>`

	title, text := textFromMarkup(markup)
	if title != "The Voyage" {
		t.Errorf("title = %q, want %q", title, "The Voyage")
	}
	if !strings.Contains(text, "Call me") || !strings.Contains(text, "Ishmael") {
		t.Errorf("text = %q, missing body content", text)
	}
	if strings.Contains(text, "ignore") {
		t.Errorf("text = %q, script content leaked", text)
	}
	if strings.Contains(text, "p{}") {
		t.Errorf("text = %q, style content leaked", text)
	}
}
