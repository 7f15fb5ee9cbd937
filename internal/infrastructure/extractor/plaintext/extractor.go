package plaintext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

// Extractor reads UTF-8 text documents. Form feeds separate pages, matching
// what pdftotext-style exports produce.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(_ context.Context, r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return e.Pages(raw)
}

func (e *Extractor) Pages(raw []byte) ([]string, error) {
	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract plaintext", errors.New("document is not valid UTF-8"))
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\f"), nil
}
