package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed", "chunks.jsonl")
	f := New(path)

	records := []domain.ChunkRecord{
		{Chunk: domain.Chunk{ID: "pub519_p1_c1", Text: "Nonresident aliens file 1040-NR.", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 1, DocID: "pub519"}}, Embedding: []float32{0.1, 0.2}},
		{Chunk: domain.Chunk{ID: "pub519_p2_c2", Text: "Form 8843 is required.", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 2, DocID: "pub519"}}},
	}
	if err := f.WriteChunks(context.Background(), records); err != nil {
		t.Fatalf("WriteChunks() error = %v", err)
	}

	got, err := f.LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "pub519_p1_c1" || got[0].Metadata.PageNumber != 1 || len(got[0].Embedding) != 2 {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
	if got[1].Embedding != nil {
		t.Fatalf("expected no embedding on second record")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
}

func TestLoadSkipsBlankLinesAndReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	body := "{\"chunk_id\":\"a\",\"text\":\"x\",\"metadata\":{\"title\":\"T\",\"page_number\":1,\"doc_id\":\"d\"}}\n\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := New(path).LoadRecords(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("LoadRecords() = %v, %v", got, err)
	}

	if err := os.WriteFile(path, []byte(body+"{broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path).LoadRecords(context.Background()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.jsonl")).LoadRecords(context.Background())
	if !domain.IsKind(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected empty corpus, got %v", err)
	}
}
