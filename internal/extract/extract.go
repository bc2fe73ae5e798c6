package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxPages caps how many pages are read from a document.
	DefaultMaxPages = 50
	// DefaultMinTextLength is the fewest non-space characters a readable document must contain.
	DefaultMinTextLength = 10

	signatureWindow = 1024
)

var (
	ErrEmptyFile  = errors.New("file is empty")
	ErrTooLarge   = errors.New("file exceeds maximum size")
	ErrNotPDF     = errors.New("file is not a PDF")
	ErrUnreadable = errors.New("PDF could not be read")
	ErrNoText     = errors.New("Document appears to be empty or contains only images")
)

// Document is the plain text pulled from a PDF.
type Document struct {
	Text      string
	PageCount int
	PagesRead int
}

// ValidateUpload checks size, name, and signature before any parsing happens.
// An empty filename skips the extension check.
func ValidateUpload(data []byte, filename string, maxBytes int64) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w (%d bytes, limit %d)", ErrTooLarge, len(data), maxBytes)
	}
	if name := strings.TrimSpace(filename); name != "" && !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return fmt.Errorf("%w: %q must have a .pdf extension", ErrNotPDF, name)
	}
	if !HasPDFSignature(data) {
		return fmt.Errorf("%w: missing %%PDF- header", ErrNotPDF)
	}
	return nil
}

// HasPDFSignature reports whether %PDF- appears near the start of data.
func HasPDFSignature(data []byte) bool {
	head := data
	if len(head) > signatureWindow {
		head = head[:signatureWindow]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

// PDFExtractor reads page text with github.com/ledongthuc/pdf.
type PDFExtractor struct {
	MaxPages      int
	MinTextLength int
}

// NewPDFExtractor returns an extractor with default limits.
func NewPDFExtractor() PDFExtractor {
	return PDFExtractor{MaxPages: DefaultMaxPages, MinTextLength: DefaultMinTextLength}
}

// Extract returns the text of up to MaxPages pages, each prefixed with a page header.
func (e PDFExtractor) Extract(ctx context.Context, data []byte) (doc Document, err error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if len(data) == 0 {
		return Document{}, ErrEmptyFile
	}
	maxPages := e.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	minText := e.MinTextLength
	if minText <= 0 {
		minText = DefaultMinTextLength
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			doc = Document{}
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	total := reader.NumPage()
	limit := total
	if limit > maxPages {
		limit = maxPages
	}

	var b strings.Builder
	read, chars := 0, 0
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Document{}, fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chars += countNonSpace(text)
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n", i)
		b.WriteString(text)
		read++
	}

	if chars < minText {
		return Document{}, ErrNoText
	}
	return Document{Text: b.String(), PageCount: total, PagesRead: read}, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
