// Package format classifies document descriptors into renderer kinds.
package format

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/folio-reader/folio/internal/book"
)

// Kind is the renderer family a document belongs to.
type Kind int

const (
	Unsupported Kind = iota
	Paginated        // fixed-layout pages (PDF)
	Reflowable       // reflowed markup (EPUB)
	Plaintext        // decoded text
)

func (k Kind) String() string {
	switch k {
	case Paginated:
		return "paginated"
	case Reflowable:
		return "reflowable"
	case Plaintext:
		return "plaintext"
	default:
		return "unsupported"
	}
}

// Resolve classifies a descriptor. It is total and deterministic: the
// same descriptor always yields the same kind, and every descriptor
// yields one. Stages, first match wins: declared format tag, sniffed
// media type of in-memory content, title extension, URL path extension
// (query string ignored).
func Resolve(d book.Descriptor) Kind {
	if k, ok := fromTag(d.Format); ok {
		return k
	}
	if data := d.Source.Bytes(); len(data) > 0 {
		if k, ok := fromMediaType(mimetype.Detect(data)); ok {
			return k
		}
	}
	if k, ok := fromExt(filepath.Ext(d.Title)); ok {
		return k
	}
	if u := d.Source.URL(); u != "" {
		p := u
		if i := strings.IndexByte(p, '?'); i >= 0 {
			p = p[:i]
		}
		if k, ok := fromExt(path.Ext(p)); ok {
			return k
		}
	}
	return Unsupported
}

func fromTag(tag string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "pdf":
		return Paginated, true
	case "epub":
		return Reflowable, true
	case "txt", "text", "md", "markdown":
		return Plaintext, true
	}
	return Unsupported, false
}

func fromMediaType(mt *mimetype.MIME) (Kind, bool) {
	switch {
	case mt.Is("application/pdf"):
		return Paginated, true
	case mt.Is("application/epub+zip"):
		return Reflowable, true
	case mt.Is("text/plain"):
		return Plaintext, true
	}
	return Unsupported, false
}

func fromExt(ext string) (Kind, bool) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return Paginated, true
	case ".epub":
		return Reflowable, true
	case ".txt", ".text", ".md", ".markdown":
		return Plaintext, true
	}
	return Unsupported, false
}
