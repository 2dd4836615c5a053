//go:build !gui

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDescribeURL(t *testing.T) {
	d, err := describe("https://example.com/books/novel.epub?token=abc", "", "")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.Source.InMemory() {
		t.Error("URL argument produced an in-memory source")
	}
	if d.Source.URL() != "https://example.com/books/novel.epub?token=abc" {
		t.Errorf("url = %q", d.Source.URL())
	}
	if d.Title != "novel.epub" {
		t.Errorf("title = %q, want novel.epub", d.Title)
	}
}

func TestDescribeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := describe(path, "", "")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !d.Source.InMemory() {
		t.Error("file argument produced a remote source")
	}
	if string(d.Source.Bytes()) != "hello" {
		t.Errorf("bytes = %q, want hello", d.Source.Bytes())
	}
	if d.Title != "notes.txt" {
		t.Errorf("title = %q, want notes.txt", d.Title)
	}
	if d.ID == "" {
		t.Error("empty document id")
	}
}

func TestDescribeOverrides(t *testing.T) {
	d, err := describe("https://example.com/x", "My Book", "pdf")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.Title != "My Book" {
		t.Errorf("title = %q, want My Book", d.Title)
	}
	if d.Format != "pdf" {
		t.Errorf("format = %q, want pdf", d.Format)
	}
}

func TestDescribeMissingFile(t *testing.T) {
	if _, err := describe(filepath.Join(t.TempDir(), "absent.pdf"), "", ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
