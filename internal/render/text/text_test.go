package text

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/folio-reader/folio/internal/book"
	"github.com/folio-reader/folio/internal/render"
)

func TestOpenFromBytes(t *testing.T) {
	v, err := Open(context.Background(), book.BytesSource([]byte("hello\nworld")), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if v.Text() != "hello\nworld" {
		t.Errorf("Text() = %q", v.Text())
	}
	lines := v.Lines()
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("Lines() = %v", lines)
	}
}

func TestOpenFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote content"))
	}))
	defer srv.Close()

	v, err := Open(context.Background(), book.URLSource(srv.URL), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if v.Text() != "remote content" {
		t.Errorf("Text() = %q", v.Text())
	}
}

func TestFailedFetchIsLoadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), book.URLSource(srv.URL), Config{})
	if err == nil {
		t.Fatal("expected error for 404 fetch")
	}
	var le *render.LoadError
	if !errors.As(err, &le) {
		t.Errorf("error %v is not a LoadError", err)
	}
}

func TestBinaryContentIsLoadError(t *testing.T) {
	_, err := Open(context.Background(), book.BytesSource([]byte{0xff, 0xfe, 0x00, 0x80, 0x81}), Config{})
	if !render.IsLoadError(err) {
		t.Errorf("error %v is not a LoadError", err)
	}
}

func TestScaleClamp(t *testing.T) {
	v, _ := Open(context.Background(), book.BytesSource([]byte("x")), Config{})

	if got := v.SetScale(5.0); got != 3.0 {
		t.Errorf("SetScale(5.0) = %v, want 3.0", got)
	}
	if got := v.SetScale(0.05); got != 0.4 {
		t.Errorf("SetScale(0.05) = %v, want 0.4", got)
	}
	if got := v.SetScale(1.2); got != 1.2 {
		t.Errorf("SetScale(1.2) = %v, want 1.2", got)
	}
}

func TestScrollReporting(t *testing.T) {
	var reported []float64
	v, _ := Open(context.Background(), book.BytesSource([]byte("x")), Config{
		OnScroll: func(y float64) { reported = append(reported, y) },
	})

	v.SetScrollOffset(120)
	v.SetScrollOffset(120) // unchanged, no report
	v.SetScrollOffset(130)
	v.SetScrollOffset(-5) // clamped to 0

	if len(reported) != 3 || reported[0] != 120 || reported[1] != 130 || reported[2] != 0 {
		t.Errorf("reported = %v, want [120 130 0]", reported)
	}
}

func TestResumeDoesNotReport(t *testing.T) {
	count := 0
	v, _ := Open(context.Background(), book.BytesSource([]byte("x")), Config{
		OnScroll: func(float64) { count++ },
	})

	v.ResumeAt(240)
	if v.ScrollOffset() != 240 {
		t.Errorf("ScrollOffset() = %v, want 240", v.ScrollOffset())
	}
	if count != 0 {
		t.Errorf("resume reported %d scroll events, want 0", count)
	}
}
