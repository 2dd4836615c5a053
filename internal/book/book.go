// Package book defines the document descriptor handed to the reader by
// the hosting application.
package book

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Descriptor identifies a document and its content source. It is
// immutable for the lifetime of a reader session.
type Descriptor struct {
	ID     string
	Title  string
	Format string // declared format tag, may be empty
	Source Source
}

// Source is the content source variant: exactly one of in-memory bytes
// or a remote URL.
type Source struct {
	data []byte
	url  string
}

// BytesSource wraps in-memory content.
func BytesSource(data []byte) Source {
	return Source{data: data}
}

// URLSource wraps a network locator.
func URLSource(url string) Source {
	return Source{url: url}
}

// Bytes returns the in-memory content, or nil for remote sources.
func (s Source) Bytes() []byte { return s.data }

// URL returns the network locator, or "" for in-memory sources.
func (s Source) URL() string { return s.url }

// InMemory reports whether the source carries its content directly.
func (s Source) InMemory() bool { return s.url == "" }

// Read returns the full content of the source, fetching remote
// locators over HTTP.
func (s Source) Read(ctx context.Context) ([]byte, error) {
	if s.InMemory() {
		return s.data, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", s.url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	return data, nil
}

// Materialize writes the source content to a temporary file and returns
// its path, for engines that only open documents by filename. The
// cleanup func removes the file and must be called when the engine is
// done with it.
func (s Source) Materialize(ctx context.Context, pattern string) (path string, cleanup func(), err error) {
	data, err := s.Read(ctx)
	if err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	name := f.Name()
	return name, func() { os.Remove(name) }, nil
}
