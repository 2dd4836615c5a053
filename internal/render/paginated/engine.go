package paginated

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/folio-reader/folio/internal/book"
	"github.com/folio-reader/folio/internal/render"
)

// Page is one rendered page: its natural dimensions at the requested
// scale and the extracted text content.
type Page struct {
	Number int
	Width  float64
	Height float64
	Text   string
}

// Doc is an open paginated document. Page numbers are 1-based.
type Doc interface {
	PageCount() int
	PageSize(page int) (w, h float64, err error)
	RenderPage(ctx context.Context, page int, scale float64) (*Page, error)
	PageText(ctx context.Context, page int) (string, error)
	Close() error
}

// Engine opens paginated documents. It is an optional collaborator:
// opening fails with a LoadError when the engine cannot serve the
// content, never a crash.
type Engine interface {
	Open(ctx context.Context, src book.Source) (Doc, error)
}

// PDFEngine is the pdfcpu-backed paginated engine.
type PDFEngine struct{}

// NewPDFEngine returns the default paginated engine.
func NewPDFEngine() *PDFEngine { return &PDFEngine{} }

// Open reads and validates a PDF from the source. Page count is known
// immediately after a successful open.
func (e *PDFEngine) Open(ctx context.Context, src book.Source) (Doc, error) {
	data, err := src.Read(ctx)
	if err != nil {
		return nil, render.NewLoadError("paginated", err)
	}
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, render.NewLoadError("paginated", fmt.Errorf("pdfcpu read: %w", err))
	}
	dims, err := pctx.PageDims()
	if err != nil {
		return nil, render.NewLoadError("paginated", fmt.Errorf("pdfcpu page dims: %w", err))
	}
	return &pdfDoc{ctx: pctx, dims: dims}, nil
}

type pdfDoc struct {
	ctx  *model.Context
	dims []types.Dim
}

func (d *pdfDoc) PageCount() int { return d.ctx.PageCount }

func (d *pdfDoc) PageSize(page int) (float64, float64, error) {
	if page < 1 || page > len(d.dims) {
		return 0, 0, fmt.Errorf("page %d out of range [1,%d]", page, len(d.dims))
	}
	return d.dims[page-1].Width, d.dims[page-1].Height, nil
}

func (d *pdfDoc) RenderPage(ctx context.Context, page int, scale float64) (*Page, error) {
	w, h, err := d.PageSize(page)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := d.PageText(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Page{
		Number: page,
		Width:  w * scale,
		Height: h * scale,
		Text:   text,
	}, nil
}

func (d *pdfDoc) PageText(ctx context.Context, page int) (string, error) {
	if page < 1 || page > d.ctx.PageCount {
		return "", fmt.Errorf("page %d out of range [1,%d]", page, d.ctx.PageCount)
	}
	r, err := pdfcpu.ExtractPageContent(d.ctx, page)
	if err != nil {
		return "", fmt.Errorf("extract page %d content: %w", page, err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read page %d content: %w", page, err)
	}
	return textFromContentStream(data), nil
}

func (d *pdfDoc) Close() error { return nil }

// pdfStringRe matches PDF string literals: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// textFromContentStream pulls text-show operators (Tj, TJ, ') out of a
// page content stream.
func textFromContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return normalizeText(sb.String())
}

// decodePDFString handles the basic PDF string escapes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// normalizeText collapses runs of whitespace, keeping newlines.
func normalizeText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			sb.WriteByte('\n')
			prevSpace = true
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsPrint(r):
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
