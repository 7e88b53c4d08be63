// Package extract turns stored document payloads into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrInvalidPDF is returned when a .pdf payload cannot be parsed.
	ErrInvalidPDF = errors.New("invalid pdf")
	// ErrInvalidText is returned when a text payload is not valid UTF-8.
	ErrInvalidText = errors.New("invalid utf-8 text")
)

// IsPDF reports whether the key is treated as a PDF document.
func IsPDF(key string) bool {
	return strings.HasSuffix(key, ".pdf")
}

// Extract converts the payload stored under key into plain text.
func Extract(key string, data []byte) (string, error) {
	if IsPDF(key) {
		return PDFText(data)
	}
	return Text(data)
}

// Text decodes a UTF-8 payload.
func Text(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrInvalidText
	}
	return string(data), nil
}

// PDFText extracts the text of every page, joined by newlines in page order.
func PDFText(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrInvalidPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %w", ErrInvalidPDF, i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}
