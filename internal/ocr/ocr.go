// Package ocr recovers text from scanned PDFs by rendering each page to a
// raster image and running optical character recognition on it.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/errgroup"
)

// Engine recognizes text in a single rendered page image (PNG bytes).
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// renderFunc rasterizes every page of a PDF at the given DPI.
// Overridable in tests; the default uses MuPDF via go-fitz.
type renderFunc func(pdfData []byte, dpi float64) ([][]byte, error)

// Reader renders PDF pages and OCRs them.
type Reader struct {
	engine Engine
	dpi    float64
	render renderFunc
	logger *slog.Logger
}

// NewReader creates a Reader that rasterizes pages at dpi (300 is the
// reference value; high enough for reliable recognition without excessive
// per-page memory).
func NewReader(engine Engine, dpi int) *Reader {
	if dpi <= 0 {
		dpi = 300
	}
	return &Reader{
		engine: engine,
		dpi:    float64(dpi),
		render: renderPages,
		logger: slog.Default(),
	}
}

// Text OCRs every page of the PDF and concatenates the results in page
// order, each prefixed with a page marker. Pages are recognized
// concurrently; a page that fails to render or recognize contributes an
// empty string rather than aborting the document.
func (r *Reader) Text(ctx context.Context, pdfData []byte) (string, error) {
	pages, err := r.render(pdfData, r.dpi)
	if err != nil {
		return "", fmt.Errorf("rendering pdf pages: %w", err)
	}
	if len(pages) == 0 {
		return "", nil
	}

	texts := make([]string, len(pages))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(2) // OCR is memory-hungry; keep page concurrency low.

	for i, png := range pages {
		g.Go(func() error {
			if len(png) == 0 {
				return nil
			}
			text, err := r.engine.Recognize(gCtx, png)
			if err != nil {
				r.logger.Warn("ocr failed for page", "page", i+1, "error", err)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&b, "[page %d]\n%s\n", i+1, strings.TrimSpace(text))
	}
	return b.String(), nil
}

// renderPages rasterizes all pages of a PDF to PNG at the given DPI.
func renderPages(pdfData []byte, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		png, err := doc.ImagePNG(i, dpi)
		if err != nil {
			// A single unrenderable page yields no image; recognition of
			// the rest continues.
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, png)
	}
	return pages, nil
}
