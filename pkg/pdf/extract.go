// Package pdf extracts plain text from uploaded files.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for content that is neither PDF nor text.
var ErrUnsupportedType = errors.New("unsupported content type")

var pdfMagic = []byte("%PDF-")

// Sniff returns a normalized content type for the uploaded bytes, using
// the declared type as a hint. PDFs are detected by magic bytes regardless
// of the declared type.
func Sniff(content []byte, declared string) string {
	if bytes.HasPrefix(content, pdfMagic) {
		return "application/pdf"
	}
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	switch {
	case declared == "application/pdf":
		return "application/pdf"
	case strings.HasPrefix(declared, "text/"), declared == "application/json":
		return declared
	case utf8.Valid(content):
		return "text/plain"
	default:
		return declared
	}
}

// Extract returns the plain text of content. PDF pages are concatenated;
// text types pass through. Other types yield ErrUnsupportedType.
func Extract(content []byte, contentType string) (string, error) {
	switch ct := Sniff(content, contentType); {
	case ct == "application/pdf":
		return extractPDF(content)
	case strings.HasPrefix(ct, "text/"), ct == "application/json":
		return string(content), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ct)
	}
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return sb.String(), nil
}
