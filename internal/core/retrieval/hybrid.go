package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const (
	DefaultCandidateK    = 20
	DefaultVectorTimeout = 5 * time.Second
)

// HybridRetriever fuses BM25 and vector rankings over a static chunk store.
type HybridRetriever struct {
	store   *ChunkStore
	lexical *LexicalIndex
	vectors ports.VectorIndex

	bm25Params    BM25Params
	rrfK          int
	candidateK    int
	vectorTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a HybridRetriever.
type Option func(*HybridRetriever)

func WithRRFK(k int) Option {
	return func(r *HybridRetriever) {
		if k > 0 {
			r.rrfK = k
		}
	}
}

func WithCandidateK(k int) Option {
	return func(r *HybridRetriever) {
		if k > 0 {
			r.candidateK = k
		}
	}
}

func WithVectorTimeout(d time.Duration) Option {
	return func(r *HybridRetriever) {
		if d > 0 {
			r.vectorTimeout = d
		}
	}
}

func WithBM25Params(p BM25Params) Option {
	return func(r *HybridRetriever) {
		r.bm25Params = p.normalize()
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *HybridRetriever) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewHybridRetriever builds the lexical index over every chunk in store.
func NewHybridRetriever(store *ChunkStore, vectors ports.VectorIndex, opts ...Option) (*HybridRetriever, error) {
	if store == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new hybrid retriever", errors.New("chunk store is nil"))
	}
	if vectors == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new hybrid retriever", errors.New("vector index is nil"))
	}

	r := &HybridRetriever{
		store:         store,
		vectors:       vectors,
		bm25Params:    DefaultBM25Params(),
		rrfK:          DefaultRRFK,
		candidateK:    DefaultCandidateK,
		vectorTimeout: DefaultVectorTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	entries := store.AllTexts()
	corpus := make([][]string, len(entries))
	for i, e := range entries {
		corpus[i] = Tokenize(e.Text)
	}
	lexical, err := BuildLexicalIndex(corpus, r.bm25Params)
	if err != nil {
		return nil, err
	}
	r.lexical = lexical

	r.logger.Info("lexical_index_built", "chunks", len(entries))
	return r, nil
}

func (r *HybridRetriever) Store() *ChunkStore {
	return r.store
}

type vectorOutcome struct {
	hits []domain.VectorHit
	err  error
}

// Retrieve returns up to topK chunks in fused order and the best-vector confidence.
// candidateK <= 0 uses the configured default.
func (r *HybridRetriever) Retrieve(ctx context.Context, query domain.Query, topK, candidateK int) (*domain.RetrievalResult, error) {
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("top_k must be >= 1, got %d", topK))
	}
	if len(query.Embedding) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("query embedding is empty"))
	}
	if candidateK <= 0 {
		candidateK = r.candidateK
	}

	start := time.Now()
	vecCtx, cancel := context.WithTimeout(ctx, r.vectorTimeout)
	defer cancel()

	vecCh := make(chan vectorOutcome, 1)
	go func() {
		hits, err := r.vectors.Query(vecCtx, query.Embedding, candidateK)
		vecCh <- vectorOutcome{hits: hits, err: err}
	}()

	bm25IDs := r.lexicalCandidates(Tokenize(query.Text), candidateK)

	var vec vectorOutcome
	select {
	case vec = <-vecCh:
	case <-vecCtx.Done():
		select {
		case vec = <-vecCh:
		default:
			vec.err = vecCtx.Err()
		}
	}
	if vec.err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "query vector index", vec.err)
	}

	vectorIDs := make([]string, len(vec.hits))
	for i, hit := range vec.hits {
		vectorIDs[i] = hit.ChunkID
	}
	confidence := 0.0
	if len(vec.hits) > 0 {
		confidence = domain.ConfidenceFromDistance(vec.hits[0].Distance)
	}

	fused := FuseRRF(vectorIDs, bm25IDs, r.rrfK)
	if len(fused) > topK {
		fused = fused[:topK]
	}

	chunks := make([]domain.Chunk, 0, len(fused))
	for _, id := range fused {
		chunk, err := r.store.Chunk(id)
		if err != nil {
			r.logger.Debug("fused_chunk_skipped", "chunk_id", id, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}

	r.logger.Debug("retrieval_completed",
		"vector_candidates", len(vectorIDs),
		"lexical_candidates", len(bm25IDs),
		"returned", len(chunks),
		"confidence", confidence,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	return &domain.RetrievalResult{
		Chunks:     chunks,
		Confidence: confidence,
	}, nil
}

func (r *HybridRetriever) lexicalCandidates(tokens []string, k int) []string {
	positions := r.lexical.TopK(tokens, k)
	entries := r.store.order
	ids := make([]string, len(positions))
	for i, pos := range positions {
		ids[i] = entries[pos]
	}
	return ids
}
