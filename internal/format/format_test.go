package format

import (
	"testing"

	"github.com/folio-reader/folio/internal/book"
)

func TestResolve(t *testing.T) {
	pdfBytes := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	tests := []struct {
		name string
		d    book.Descriptor
		want Kind
	}{
		{
			name: "declared tag wins",
			d:    book.Descriptor{Title: "notes.txt", Format: "pdf", Source: book.BytesSource([]byte("plain text"))},
			want: Paginated,
		},
		{
			name: "tag epub",
			d:    book.Descriptor{Title: "book", Format: "epub", Source: book.URLSource("http://x/y")},
			want: Reflowable,
		},
		{
			name: "tag case insensitive",
			d:    book.Descriptor{Title: "book", Format: "TXT", Source: book.BytesSource(nil)},
			want: Plaintext,
		},
		{
			name: "unknown tag falls through to content",
			d:    book.Descriptor{Title: "book", Format: "mobi", Source: book.BytesSource(pdfBytes)},
			want: Paginated,
		},
		{
			name: "sniffed pdf content",
			d:    book.Descriptor{Title: "scan", Source: book.BytesSource(pdfBytes)},
			want: Paginated,
		},
		{
			name: "title extension",
			d:    book.Descriptor{Title: "moby-dick.epub", Source: book.URLSource("http://host/blob/abc123")},
			want: Reflowable,
		},
		{
			name: "markdown title treated as plaintext",
			d:    book.Descriptor{Title: "README.md", Source: book.URLSource("http://host/blob")},
			want: Plaintext,
		},
		{
			name: "url extension with query string",
			d:    book.Descriptor{Title: "shared book", Source: book.URLSource("https://cdn.example.com/books/war.pdf?token=abc&x=.epub")},
			want: Paginated,
		},
		{
			name: "nothing recognized",
			d:    book.Descriptor{Title: "mystery", Source: book.URLSource("https://cdn.example.com/blob/9f3a")},
			want: Unsupported,
		},
		{
			name: "unsupported binary content",
			d:    book.Descriptor{Title: "archive", Source: book.BytesSource([]byte{0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00})},
			want: Unsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.d)
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
			// Deterministic: a second call sees the same answer.
			if again := Resolve(tt.d); again != got {
				t.Errorf("Resolve() not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Paginated:   "paginated",
		Reflowable:  "reflowable",
		Plaintext:   "plaintext",
		Unsupported: "unsupported",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
