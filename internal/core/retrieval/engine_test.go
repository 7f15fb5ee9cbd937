package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type fakeCorpus struct {
	records []domain.ChunkRecord
	err     error
}

func (f fakeCorpus) LoadRecords(context.Context) ([]domain.ChunkRecord, error) {
	return f.records, f.err
}

func buildRetriever(t *testing.T, id string) *HybridRetriever {
	t.Helper()
	vectors := &fakeVectorIndex{hits: []domain.VectorHit{{ChunkID: id, Distance: 0.4}}}
	r, err := Build(context.Background(), fakeCorpus{records: []domain.ChunkRecord{record(id, id+" treaty text")}}, vectors)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return r
}

func TestBuildAndSwap(t *testing.T) {
	query := domain.Query{Text: "treaty", Embedding: []float32{1}}
	first := buildRetriever(t, "old")

	engine := NewEngine(first)
	res, err := engine.Retrieve(context.Background(), query, 1, 0)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res.Chunks) != 1 || res.Chunks[0].ID != "old" {
		t.Fatalf("expected [old], got %v", ids(res.Chunks))
	}

	second := buildRetriever(t, "new")
	if prev := engine.Swap(second); prev != first {
		t.Fatal("Swap must return the replaced retriever")
	}
	if engine.Current() != second {
		t.Fatal("Current must return the installed retriever")
	}

	res, err = engine.Retrieve(context.Background(), query, 1, 0)
	if err != nil {
		t.Fatalf("Retrieve() after swap error = %v", err)
	}
	if res.Chunks[0].ID != "new" {
		t.Fatalf("expected new chunk after swap, got %v", ids(res.Chunks))
	}
}

func TestBuildPropagatesErrors(t *testing.T) {
	if _, err := Build(context.Background(), fakeCorpus{err: errors.New("scroll failed")}, &fakeVectorIndex{}); err == nil {
		t.Fatal("expected corpus error")
	}

	dup := fakeCorpus{records: []domain.ChunkRecord{record("a", "x"), record("a", "y")}}
	if _, err := Build(context.Background(), dup, &fakeVectorIndex{}); !errors.Is(err, domain.ErrIngestion) {
		t.Fatalf("expected ErrIngestion, got %v", err)
	}
	if _, err := Build(context.Background(), fakeCorpus{}, &fakeVectorIndex{}); !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestEngineWithoutRetriever(t *testing.T) {
	engine := NewEngine(nil)
	_, err := engine.Retrieve(context.Background(), domain.Query{Text: "tax", Embedding: []float32{1}}, 1, 0)
	if !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}
