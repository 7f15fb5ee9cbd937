package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/config"
	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/corpus/jsonl"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		OllamaURL:              "http://127.0.0.1:1",
		OllamaGenModel:         "llama3.1:8b",
		OllamaEmbedModel:       "nomic-embed-text",
		GeneratorProvider:      "ollama",
		QdrantURL:              "http://127.0.0.1:1",
		QdrantCollection:       "tax_documents",
		CorpusSource:           "jsonl",
		CorpusPath:             filepath.Join(dir, "chunks.jsonl"),
		CorpusRoot:             filepath.Join(dir, "raw"),
		ProfilePath:            filepath.Join(dir, "user_profile.json"),
		RAGTopK:                5,
		RAGCandidateK:          20,
		RAGFusionRRFK:          60,
		RAGBM25K1:              1.5,
		RAGBM25B:               0.75,
		RAGConfidenceThreshold: 0.70,
		RAGVectorTimeout:       5 * time.Second,
		IngestChunkWords:       500,
		IngestOverlapWords:     100,
		IngestWorkers:          2,
		IngestEmbedBatch:       8,
	}
}

func writeCorpus(t *testing.T, path string, ids ...string) {
	t.Helper()
	records := make([]domain.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, domain.ChunkRecord{Chunk: domain.Chunk{
			ID:       id,
			Text:     "Form 8843 must be filed by every F-1 student.",
			Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 1, DocID: "pub519"},
		}})
	}
	if err := jsonl.New(path).WriteChunks(context.Background(), records); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewBuildsServingGraphAndReloads(t *testing.T) {
	cfg := testConfig(t)
	writeCorpus(t, cfg.CorpusPath, "pub519_p1_c1", "pub519_p1_c2")

	ctx := context.Background()
	app, err := New(ctx, cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if got := app.Engine.Current().Store().Len(); got != 2 {
		t.Fatalf("expected 2 chunks, got %d", got)
	}
	if app.Advisor == nil || app.Feedback == nil || app.Evaluator(false) == nil {
		t.Fatal("use cases not wired")
	}

	profile := domain.DefaultProfile()
	profile.ID = "default"
	if err := app.Profiles.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if _, err := app.Profiles.GetProfile(ctx, "default"); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}

	previous := app.Engine.Current()
	writeCorpus(t, cfg.CorpusPath, "pub519_p1_c1", "pub519_p1_c2", "pub519_p2_c3")
	if err := app.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := app.Engine.Current().Store().Len(); got != 3 {
		t.Fatalf("expected 3 chunks after reload, got %d", got)
	}
	if previous.Store().Len() != 2 {
		t.Fatal("previous retriever must stay untouched")
	}
}

func TestNewFailsWithoutCorpus(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(context.Background(), cfg, Options{Logger: quietLogger()})
	if !domain.IsKind(err, domain.ErrEmptyCorpus) {
		t.Fatalf("expected empty corpus error, got %v", err)
	}
}

func TestNewRejectsUnknownGenerator(t *testing.T) {
	cfg := testConfig(t)
	cfg.GeneratorProvider = "openai"
	writeCorpus(t, cfg.CorpusPath, "pub519_p1_c1")

	_, err := New(context.Background(), cfg, Options{Logger: quietLogger()})
	if err == nil || !strings.Contains(err.Error(), "GENERATOR_PROVIDER") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewIngestDoesNotNeedCorpus(t *testing.T) {
	cfg := testConfig(t)
	in, err := NewIngest(cfg)
	if err != nil {
		t.Fatalf("NewIngest() error = %v", err)
	}
	defer in.Close()
	if in.UseCase == nil || in.Corpus.Path() != cfg.CorpusPath {
		t.Fatalf("ingest graph not wired: %+v", in)
	}
}

func TestNewWorkerRequiresQueueAndDatabase(t *testing.T) {
	cfg := testConfig(t)
	if _, err := NewWorker(context.Background(), cfg, quietLogger()); err == nil {
		t.Fatal("expected error without NATS_URL and POSTGRES_DSN")
	}
}
