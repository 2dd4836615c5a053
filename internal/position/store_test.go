package position

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithDebounce(20 * time.Millisecond)}, opts...)
	s, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, filepath.Join(dir, stateFileName)
}

func readState(t *testing.T, path string) map[string]Record {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var out map[string]Record
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal state file: %v", err)
	}
	return out
}

func TestSaveAndLoad(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	if _, ok := s.Load("doc1"); ok {
		t.Fatal("expected no record before first save")
	}

	s.Save("doc1", Page(7))
	rec, ok := s.Load("doc1")
	if !ok {
		t.Fatal("expected record after save")
	}
	if rec.Page == nil || *rec.Page != 7 {
		t.Errorf("Page = %v, want 7", rec.Page)
	}
	if rec.LastReadAt.IsZero() {
		t.Error("LastReadAt not stamped")
	}
}

func TestMergeDisjointFields(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	s.Save("doc1", Page(5))
	s.Save("doc1", ScrollOffset(120))
	s.Save("doc1", Locator("loc:3:42"))

	rec, _ := s.Load("doc1")
	if rec.Page == nil || *rec.Page != 5 {
		t.Errorf("Page = %v, want 5", rec.Page)
	}
	if rec.ScrollOffset == nil || *rec.ScrollOffset != 120 {
		t.Errorf("ScrollOffset = %v, want 120", rec.ScrollOffset)
	}
	if rec.Locator == nil || *rec.Locator != "loc:3:42" {
		t.Errorf("Locator = %v, want loc:3:42", rec.Locator)
	}
}

func TestDebounceCoalescing(t *testing.T) {
	s, path := openTestStore(t)
	defer s.Close()

	first := s.Flushed()
	for i := 1; i <= 20; i++ {
		s.Save("doc1", Page(i))
	}

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("flush never happened")
	}

	// The single write carries the last call's state.
	state := readState(t, path)
	rec := state["doc1"]
	if rec.Page == nil || *rec.Page != 20 {
		t.Errorf("persisted Page = %v, want 20", rec.Page)
	}

	// No second flush follows; the burst was coalesced.
	second := s.Flushed()
	select {
	case <-second:
		t.Error("unexpected second flush for a single burst")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIndependentDocuments(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()

	s.Save("a", Page(3))
	s.Save("b", ScrollOffset(50))

	ra, _ := s.Load("a")
	rb, _ := s.Load("b")
	if ra.Page == nil || *ra.Page != 3 {
		t.Errorf("a.Page = %v, want 3", ra.Page)
	}
	if ra.ScrollOffset != nil {
		t.Errorf("a.ScrollOffset = %v, want nil", ra.ScrollOffset)
	}
	if rb.ScrollOffset == nil || *rb.ScrollOffset != 50 {
		t.Errorf("b.ScrollOffset = %v, want 50", rb.ScrollOffset)
	}
}

func TestCloseFlushesPending(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, WithDebounce(time.Hour)) // timer will never fire on its own
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Save("doc1", Page(9))
	s.Close()

	state := readState(t, filepath.Join(dir, stateFileName))
	rec := state["doc1"]
	if rec.Page == nil || *rec.Page != 9 {
		t.Errorf("persisted Page after Close = %v, want 9", rec.Page)
	}
}

func TestReopenSeesPersistedState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Save("doc1", Locator("epubcfi(/6/4!/4/2)"))
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	rec, ok := s2.Load("doc1")
	if !ok {
		t.Fatal("expected record after reopen")
	}
	if rec.Locator == nil || *rec.Locator != "epubcfi(/6/4!/4/2)" {
		t.Errorf("Locator = %v", rec.Locator)
	}
}

func TestCorruptStateFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open with corrupt state: %v", err)
	}
	defer s.Close()
	if _, ok := s.Load("anything"); ok {
		t.Error("corrupt state should start empty")
	}
}
