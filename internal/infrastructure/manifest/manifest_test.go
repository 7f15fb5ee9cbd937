package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestParseDocumentsMapping(t *testing.T) {
	in := `
documents:
  - doc_id: pub519
    title: "U.S. Tax Guide for Aliens"
    source_type: irs_publication
    year: 2024
    folder: irs/
    filename: p519.pdf
  - doc_id: treaty_in
    title: India Treaty
    source_type: treaty
    country: India
    folder: treaties
    filename: india.pdf
`
	docs, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(docs))
	}
	if docs[0].Year != "2024" {
		t.Fatalf("numeric year should decode as string, got %q", docs[0].Year)
	}
	if docs[0].StorageKey() != "irs/p519.pdf" {
		t.Fatalf("unexpected storage key %q", docs[0].StorageKey())
	}
	if docs[1].Country != "India" {
		t.Fatalf("unexpected country %q", docs[1].Country)
	}
}

func TestParseBareList(t *testing.T) {
	in := "- doc_id: f1\n  title: F-1 Overview\n  folder: uscis\n  filename: f1.pdf\n"
	docs, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(docs) != 1 || docs[0].DocID != "f1" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
}

func TestParseRejectsEmptyAndMalformed(t *testing.T) {
	if _, err := Parse(strings.NewReader("  \n")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty manifest, got %v", err)
	}
	if _, err := Parse(strings.NewReader("documents: [\n")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for malformed yaml, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	if err := os.WriteFile(path, []byte("documents:\n  - doc_id: a\n    folder: x\n    filename: a.pdf\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	docs, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
