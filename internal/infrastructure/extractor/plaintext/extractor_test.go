package plaintext

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestExtractPagesSplitsOnFormFeed(t *testing.T) {
	pages, err := NewExtractor().ExtractPages(context.Background(), strings.NewReader("page one\fpage two\n"))
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if !reflect.DeepEqual(pages, []string{"page one", "page two"}) {
		t.Fatalf("unexpected pages: %q", pages)
	}
}

func TestExtractPagesRejectsBinary(t *testing.T) {
	_, err := NewExtractor().ExtractPages(context.Background(), strings.NewReader("\xff\xfe\x00binary"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestExtractPagesEmpty(t *testing.T) {
	pages, err := NewExtractor().ExtractPages(context.Background(), strings.NewReader("  \n"))
	if err != nil || pages != nil {
		t.Fatalf("expected no pages, got %q err=%v", pages, err)
	}
}
