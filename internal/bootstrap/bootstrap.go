package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/student-tax-advisor/internal/config"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
	"github.com/kirillkom/student-tax-advisor/internal/core/retrieval"
	"github.com/kirillkom/student-tax-advisor/internal/core/usecase"
	badgercache "github.com/kirillkom/student-tax-advisor/internal/infrastructure/cache/badger"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/chunking"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/corpus/jsonl"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/interactionlog"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/profile/jsonfile"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/vector/qdrant"
)

// Options tune what New wires for a particular binary.
type Options struct {
	Logger   *slog.Logger
	Recorder usecase.AdviceRecorder
}

// App is the serving graph shared by the API, the chat CLI, the MCP server
// and the evaluator.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Engine   *retrieval.Engine
	Advisor  *usecase.AdviseUseCase
	Feedback *usecase.FeedbackUseCase
	Profiles ports.ProfileStore

	embedder  ports.Embedder
	generator ports.AnswerGenerator
	corpus    ports.CorpusSource
	vectors   *qdrant.Client
	closers   []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	exec := newExecutor(resilience.DefaultConfig(), cfg)
	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(exec)

	embedder, err := app.newEmbedder(cfg, ollamaClient)
	if err != nil {
		return nil, err
	}
	generator, err := app.newGenerator(ctx, cfg, ollamaClient)
	if err != nil {
		return nil, err
	}

	app.vectors = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(exec))
	app.corpus = corpusSource(cfg, app.vectors)

	retriever, err := retrieval.Build(ctx, app.corpus, app.vectors, retrievalOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("build retriever: %w", err)
	}
	app.Engine = retrieval.NewEngine(retriever)

	interactions, profiles, err := app.persistence(ctx, cfg, exec, logger)
	if err != nil {
		return nil, err
	}
	app.Profiles = profiles

	settings := usecase.AdviseSettings{TopK: cfg.RAGTopK, CandidateK: cfg.RAGCandidateK}
	gate := usecase.NewConfidenceGate(cfg.DomainKeywords, cfg.RAGConfidenceThreshold)
	app.Advisor = usecase.NewAdviseUseCase(embedder, app.Engine, generator, gate, interactions, opts.Recorder, settings)
	app.Feedback = usecase.NewFeedbackUseCase(interactions)
	app.embedder, app.generator = embedder, generator

	ok = true
	return app, nil
}

// Evaluator scores retrieval against the current engine. With generate set
// it also produces and scores answers.
func (a *App) Evaluator(generate bool) *usecase.EvaluateUseCase {
	var generator ports.AnswerGenerator
	if generate {
		generator = a.generator
	}
	settings := usecase.AdviseSettings{TopK: a.Config.RAGTopK, CandidateK: a.Config.RAGCandidateK}
	return usecase.NewEvaluateUseCase(a.embedder, a.Engine, generator, settings)
}

// Reload rebuilds the retriever from the corpus source and swaps it in.
// Queries already running finish on the previous retriever.
func (a *App) Reload(ctx context.Context) error {
	next, err := retrieval.Build(ctx, a.corpus, a.vectors, retrievalOptions(a.Config, a.Logger)...)
	if err != nil {
		return fmt.Errorf("rebuild retriever: %w", err)
	}
	a.Engine.Swap(next)
	a.Logger.Info("retriever_reloaded", "chunks", next.Store().Len())
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) newEmbedder(cfg config.Config, client *ollama.Client) (ports.Embedder, error) {
	base := ollama.NewEmbedder(client)
	if cfg.EmbedCachePath == "" {
		return base, nil
	}
	db, err := badgercache.Open(cfg.EmbedCachePath)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = db.Close() })
	return badgercache.NewCachedEmbedder(base, db, cfg.OllamaEmbedModel), nil
}

func (a *App) newGenerator(ctx context.Context, cfg config.Config, client *ollama.Client) (ports.AnswerGenerator, error) {
	switch cfg.GeneratorProvider {
	case "gemini":
		g, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("init gemini generator: %w", err)
		}
		a.onClose(func() { _ = g.Close() })
		return g, nil
	case "", "ollama":
		return ollama.NewGenerator(client), nil
	default:
		return nil, fmt.Errorf("unknown GENERATOR_PROVIDER %q", cfg.GeneratorProvider)
	}
}

// persistence wires the interaction log and profile store. Records always go
// to the local JSONL files; with NATS configured they are also published for
// the worker, otherwise with Postgres configured they are written directly.
func (a *App) persistence(ctx context.Context, cfg config.Config, exec *resilience.Executor, logger *slog.Logger) (ports.InteractionLog, ports.ProfileStore, error) {
	tee := interactionlog.Tee{interactionlog.NewJSONL(cfg.QueryLogPath, cfg.FeedbackLogPath)}
	var profiles ports.ProfileStore = jsonfile.New(cfg.ProfilePath)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = openPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(func() { _ = db.Close() })
		profiles = postgres.NewProfileRepository(db)
	}

	switch {
	case cfg.NATSURL != "":
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
			ResilienceExecutor: exec,
			Logger:             logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init interaction queue: %w", err)
		}
		a.onClose(queue.Close)
		tee = append(tee, queue)
	case db != nil:
		tee = append(tee, postgres.NewInteractionRepository(db))
	}
	return tee, profiles, nil
}

// Ingest is the ingestion graph used by "advisor ingest".
type Ingest struct {
	UseCase *usecase.IngestCorpusUseCase
	Corpus  *jsonl.File
	closers []func()
}

func NewIngest(cfg config.Config) (*Ingest, error) {
	storage, err := localfs.New(cfg.CorpusRoot)
	if err != nil {
		return nil, fmt.Errorf("init corpus storage: %w", err)
	}
	exec := newExecutor(resilience.IngestConfig(), cfg)
	client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(exec)

	in := &Ingest{Corpus: jsonl.New(cfg.CorpusPath)}
	var embedder ports.Embedder = ollama.NewEmbedder(client)
	if cfg.EmbedCachePath != "" {
		db, err := badgercache.Open(cfg.EmbedCachePath)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		embedder = badgercache.NewCachedEmbedder(embedder, db, cfg.OllamaEmbedModel)
	}

	in.UseCase = usecase.NewIngestCorpusUseCase(
		storage,
		pdf.NewExtractor(),
		chunking.NewCleaner(),
		chunking.NewSplitter(cfg.IngestChunkWords, cfg.IngestOverlapWords),
		embedder,
		qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.WithExecutor(exec)),
		in.Corpus,
		usecase.IngestSettings{Workers: cfg.IngestWorkers, EmbedBatchSize: cfg.IngestEmbedBatch},
	)
	return in, nil
}

func (in *Ingest) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}

// Worker is the graph for cmd/worker: NATS in, Postgres out.
type Worker struct {
	Queue        *nats.Queue
	Interactions *postgres.InteractionRepository
	closeFn      func()
}

func NewWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if cfg.NATSURL == "" || cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("worker requires NATS_URL and POSTGRES_DSN")
	}
	db, err := openPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{Logger: logger})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init interaction queue: %w", err)
	}
	return &Worker{
		Queue:        queue,
		Interactions: postgres.NewInteractionRepository(db),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func newExecutor(policy resilience.Config, cfg config.Config) *resilience.Executor {
	return resilience.NewExecutor(policy.WithOverrides(cfg.ResilienceAttemptTimeout, cfg.ResilienceBreakerEnabled))
}

func corpusSource(cfg config.Config, vectors *qdrant.Client) ports.CorpusSource {
	if cfg.CorpusSource == "qdrant" {
		return vectors
	}
	return jsonl.New(cfg.CorpusPath)
}

func retrievalOptions(cfg config.Config, logger *slog.Logger) []retrieval.Option {
	return []retrieval.Option{
		retrieval.WithRRFK(cfg.RAGFusionRRFK),
		retrieval.WithCandidateK(cfg.RAGCandidateK),
		retrieval.WithVectorTimeout(cfg.RAGVectorTimeout),
		retrieval.WithBM25Params(retrieval.BM25Params{K1: cfg.RAGBM25K1, B: cfg.RAGBM25B}),
		retrieval.WithLogger(logger),
	}
}
