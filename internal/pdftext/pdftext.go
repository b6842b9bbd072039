// Package pdftext extracts plain text from PDF payloads.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/xxxsen/suma/internal/pkg/errors"
)

var ErrUnreadablePDF = fmt.Errorf("unreadable pdf: %w", appErr.ErrInvalid)

var pdfMagic = []byte("%PDF")

type Page struct {
	Number int
	Text   string
}

// IsPDF reports whether data starts with the PDF header, allowing leading whitespace.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic)
}

// ExtractText returns the text of every page joined by newlines. An empty
// string is a valid result for image-only documents.
func ExtractText(data []byte) (string, error) {
	pages, err := ExtractPages(data)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}

// ExtractPages returns per-page text, 0-based page numbers.
func ExtractPages(data []byte) (pages []Page, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrUnreadablePDF)
	}
	if !IsPDF(data) {
		return nil, fmt.Errorf("missing pdf header: %w", ErrUnreadablePDF)
	}
	// the parser panics on some truncated xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v: %w", r, ErrUnreadablePDF)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %v: %w", err, ErrUnreadablePDF)
	}
	total := reader.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %v: %w", i, err, ErrUnreadablePDF)
		}
		pages = append(pages, Page{Number: i - 1, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

// ReadAll extracts text from a reader, used for files on disk.
func ReadAll(r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("nil reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return ExtractText(data)
}
