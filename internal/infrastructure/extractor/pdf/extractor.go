package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/extractor/plaintext"
)

var pdfMagic = []byte("%PDF-")

// Extractor returns one text entry per PDF page, empty pages included so
// page numbers stay aligned with the source. Non-PDF input falls back to the
// plaintext extractor.
type Extractor struct {
	text *plaintext.Extractor
}

func NewExtractor() *Extractor {
	return &Extractor{text: plaintext.NewExtractor()}
}

func (e *Extractor) ExtractPages(ctx context.Context, r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if !bytes.HasPrefix(raw, pdfMagic) {
		return e.text.Pages(raw)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "open pdf", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrIngestion, fmt.Sprintf("extract pdf page %d", i), err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
