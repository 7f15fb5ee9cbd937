package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

// Engine serves queries from the currently installed retriever. A corpus
// refresh builds a new retriever and swaps it in; the old one keeps serving
// in-flight queries untouched.
type Engine struct {
	current atomic.Pointer[HybridRetriever]
}

func NewEngine(r *HybridRetriever) *Engine {
	e := &Engine{}
	e.current.Store(r)
	return e
}

// Build loads every record from source and constructs a fresh retriever.
func Build(ctx context.Context, source ports.CorpusSource, vectors ports.VectorIndex, opts ...Option) (*HybridRetriever, error) {
	records, err := source.LoadRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus records: %w", err)
	}
	store, err := LoadChunkStore(records)
	if err != nil {
		return nil, err
	}
	return NewHybridRetriever(store, vectors, opts...)
}

func (e *Engine) Current() *HybridRetriever {
	return e.current.Load()
}

// Swap installs next and returns the retriever it replaced.
func (e *Engine) Swap(next *HybridRetriever) *HybridRetriever {
	return e.current.Swap(next)
}

func (e *Engine) Retrieve(ctx context.Context, query domain.Query, topK, candidateK int) (*domain.RetrievalResult, error) {
	r := e.current.Load()
	if r == nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "retrieve", errors.New("engine has no retriever installed"))
	}
	return r.Retrieve(ctx, query, topK, candidateK)
}
