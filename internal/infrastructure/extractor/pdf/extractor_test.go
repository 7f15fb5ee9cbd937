package pdf

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestExtractPagesFallsBackToPlaintext(t *testing.T) {
	pages, err := NewExtractor().ExtractPages(context.Background(), strings.NewReader("first\fsecond"))
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"first", "second"}) {
		t.Fatalf("unexpected pages: %q", pages)
	}
}

func TestExtractPagesRejectsCorruptPDF(t *testing.T) {
	_, err := NewExtractor().ExtractPages(context.Background(), strings.NewReader("%PDF-1.7\nnot really a pdf"))
	if !domain.IsKind(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}
}
