package ports

import (
	"context"
	"io"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex answers nearest-neighbour queries over chunk embeddings.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, k int) ([]domain.VectorHit, error)
}

// VectorWriter stores chunk embeddings for later querying.
type VectorWriter interface {
	UpsertChunks(ctx context.Context, records []domain.ChunkRecord) error
}

// CorpusSource yields every ingested chunk record once at startup.
type CorpusSource interface {
	LoadRecords(ctx context.Context) ([]domain.ChunkRecord, error)
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, req domain.AnswerRequest) (string, error)
}

// InteractionLog persists answered queries and user feedback.
type InteractionLog interface {
	RecordQuery(ctx context.Context, record domain.QueryLogRecord) error
	RecordFeedback(ctx context.Context, record domain.FeedbackRecord) error
}

// ProfileStore persists student profiles.
type ProfileStore interface {
	SaveProfile(ctx context.Context, profile domain.StudentProfile) error
	GetProfile(ctx context.Context, id string) (*domain.StudentProfile, error)
}

// ObjectStorage stores source documents and ingestion artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// PageExtractor extracts per-page plain text from a stored document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, r io.Reader) ([]string, error)
}

// Chunker splits text into retrievable passages.
type Chunker interface {
	Split(text string) []string
}

// TextCleaner normalizes extracted page text before chunking.
type TextCleaner interface {
	Clean(text string) string
}

// ChunkSink persists the ingested records for the corpus source to read back.
type ChunkSink interface {
	WriteChunks(ctx context.Context, records []domain.ChunkRecord) error
}
