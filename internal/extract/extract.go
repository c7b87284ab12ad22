// Package extract turns raw uploaded file bytes into plain text, dispatching
// on the declared file type and falling back to OCR for scanned PDFs.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"code.sajari.com/docconv"
)

// Result is the outcome of one extraction. Text may legitimately be empty
// (an empty file, a blank document); Failure is set when emptiness was
// caused by an internal error instead. Extraction never returns a Go error
// to the caller — the caller decides whether empty text matters.
type Result struct {
	Text    string
	OCRUsed bool
	Failure error
}

// OCRFunc recovers text from a scanned PDF. Wired to ocr.Reader.Text in
// production; nil disables the fallback.
type OCRFunc func(ctx context.Context, pdfData []byte) (string, error)

// Extractor dispatches extraction by declared file type.
type Extractor struct {
	// minTextChars is the direct-extraction yield below which a PDF is
	// assumed to be scanned and re-read through OCR.
	minTextChars int
	ocr          OCRFunc
	logger       *slog.Logger

	// Extraction backends, overridable in tests.
	pdfText  func(data []byte) (string, error)
	docxText func(data []byte) (string, error)
	docText  func(data []byte) (string, error)
}

// New creates an Extractor. ocr may be nil; minTextChars <= 0 selects the
// reference threshold of 20 characters.
func New(minTextChars int, ocr OCRFunc) *Extractor {
	if minTextChars <= 0 {
		minTextChars = 20
	}
	return &Extractor{
		minTextChars: minTextChars,
		ocr:          ocr,
		logger:       slog.Default(),
		pdfText:      pdfPlainText,
		docxText: func(data []byte) (string, error) {
			text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
			return text, err
		},
		docText: func(data []byte) (string, error) {
			text, _, err := docconv.ConvertDoc(bytes.NewReader(data))
			return text, err
		},
	}
}

// Extract produces the plain-text representation of data according to the
// declared file type (case-insensitive). Unknown types get a best-effort
// UTF-8 decode. Panics inside format parsers are recovered and reported via
// Result.Failure.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("extraction panicked", "file_type", fileType, "panic", r)
			res = Result{Failure: fmt.Errorf("extraction panic: %v", r)}
		}
	}()

	switch strings.ToUpper(fileType) {
	case "PDF":
		return e.extractPDF(ctx, data)
	case "DOCX":
		return e.convert(data, e.docxText, "docx")
	case "DOC":
		return e.convert(data, e.docText, "doc")
	default:
		// TXT, MD, JS, SQL, YAML and friends, plus anything unlisted:
		// best-effort UTF-8 decode, dropping invalid sequences.
		return Result{Text: decodeText(data)}
	}
}

// extractPDF reads the text layer page by page. When the total yield is
// below the minimum-content threshold the document is treated as scanned
// and the same bytes go through OCR instead.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) Result {
	text, err := e.pdfText(data)
	if err != nil {
		e.logger.Warn("pdf text extraction failed", "error", err)
		text = ""
	}

	if len(strings.TrimSpace(text)) >= e.minTextChars {
		return Result{Text: text}
	}

	if e.ocr == nil {
		if err != nil {
			return Result{Failure: fmt.Errorf("pdf extraction failed and no ocr available: %w", err)}
		}
		return Result{Text: text}
	}

	ocrText, ocrErr := e.ocr(ctx, data)
	if ocrErr != nil {
		e.logger.Warn("ocr fallback failed", "error", ocrErr)
		return Result{Failure: fmt.Errorf("ocr fallback: %w", ocrErr)}
	}
	return Result{Text: ocrText, OCRUsed: true}
}

func (e *Extractor) convert(data []byte, fn func([]byte) (string, error), kind string) Result {
	text, err := fn(data)
	if err != nil {
		// Extraction failures never abort the surrounding upload flow.
		e.logger.Warn("document conversion failed", "kind", kind, "error", err)
		return Result{Failure: fmt.Errorf("%s conversion: %w", kind, err)}
	}
	return Result{Text: text}
}

// decodeText returns data as UTF-8, stripping invalid byte sequences
// instead of failing.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}
