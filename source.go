package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/folio-reader/folio/internal/book"
)

// describe turns a file path or URL argument into a book descriptor.
// URLs are fetched lazily by the renderer; files are read up front so
// the format can be sniffed from their bytes.
func describe(arg, title, formatTag string) (book.Descriptor, error) {
	d := book.Descriptor{
		Title:  title,
		Format: formatTag,
	}

	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		d.ID = arg
		d.Source = book.URLSource(arg)
		if d.Title == "" {
			d.Title = filepath.Base(strings.SplitN(arg, "?", 2)[0])
		}
		return d, nil
	}

	f, err := os.Open(arg)
	if err != nil {
		return book.Descriptor{}, fmt.Errorf("failed to open '%s': %w", arg, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return book.Descriptor{}, fmt.Errorf("failed to read '%s': %w", arg, err)
	}

	abs, err := filepath.Abs(arg)
	if err != nil {
		abs = arg
	}
	d.ID = abs
	d.Source = book.BytesSource(data)
	if d.Title == "" {
		d.Title = filepath.Base(arg)
	}
	return d, nil
}
