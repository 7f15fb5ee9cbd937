package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

type IngestSettings struct {
	Workers        int
	EmbedBatchSize int
}

// IngestCorpusUseCase turns manifest-listed PDFs into embedded chunk records.
type IngestCorpusUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.PageExtractor
	cleaner   ports.TextCleaner
	chunker   ports.Chunker
	embedder  ports.Embedder
	writer    ports.VectorWriter
	sink      ports.ChunkSink
	settings  IngestSettings
	logger    *slog.Logger
}

func NewIngestCorpusUseCase(
	storage ports.ObjectStorage,
	extractor ports.PageExtractor,
	cleaner ports.TextCleaner,
	chunker ports.Chunker,
	embedder ports.Embedder,
	writer ports.VectorWriter,
	sink ports.ChunkSink,
	settings IngestSettings,
) *IngestCorpusUseCase {
	if settings.Workers <= 0 {
		settings.Workers = 4
	}
	if settings.EmbedBatchSize <= 0 {
		settings.EmbedBatchSize = 32
	}
	return &IngestCorpusUseCase{
		storage:   storage,
		extractor: extractor,
		cleaner:   cleaner,
		chunker:   chunker,
		embedder:  embedder,
		writer:    writer,
		sink:      sink,
		settings:  settings,
		logger:    slog.Default(),
	}
}

// Verify compares the manifest with stored files. Missing entries are listed
// manifest keys with no file; unlisted entries are PDFs in a manifest folder
// that no entry names.
func (uc *IngestCorpusUseCase) Verify(ctx context.Context, docs []domain.SourceDocument) (missing, unlisted []string, err error) {
	listed := make(map[string]struct{}, len(docs))
	folders := make(map[string]struct{})
	for _, d := range docs {
		key := d.StorageKey()
		listed[key] = struct{}{}
		folders[d.Folder] = struct{}{}

		ok, err := uc.storage.Exists(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("check %s: %w", key, err)
		}
		if !ok {
			missing = append(missing, key)
		}
	}

	for folder := range folders {
		keys, err := uc.storage.List(ctx, folder)
		if err != nil {
			return nil, nil, fmt.Errorf("list %s: %w", folder, err)
		}
		for _, key := range keys {
			if !strings.EqualFold(path.Ext(key), ".pdf") {
				continue
			}
			if _, ok := listed[key]; !ok {
				unlisted = append(unlisted, key)
			}
		}
	}
	sort.Strings(unlisted)
	return missing, unlisted, nil
}

type extractedDoc struct {
	pages []string
	err   error
}

// Ingest extracts, cleans, chunks and embeds every available document, then
// hands the records to the vector writer and the chunk sink. Chunk ids are
// "{doc_id}_p{page}_c{n}" with n counting across the whole run.
func (uc *IngestCorpusUseCase) Ingest(ctx context.Context, docs []domain.SourceDocument) (*domain.IngestReport, error) {
	if err := validateManifest(docs); err != nil {
		return nil, err
	}

	missing, unlisted, err := uc.Verify(ctx, docs)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIngestion, "verify manifest", err)
	}
	report := &domain.IngestReport{MissingFiles: missing, UnlistedFiles: unlisted}
	skip := make(map[string]struct{}, len(missing))
	for _, key := range missing {
		skip[key] = struct{}{}
		uc.logger.Warn("manifest_file_missing", "key", key)
	}

	extracted, err := uc.extractAll(ctx, docs, skip)
	if err != nil {
		return nil, err
	}

	var (
		chunks  []domain.Chunk
		counter int
	)
	for i, doc := range docs {
		if _, ok := skip[doc.StorageKey()]; ok {
			continue
		}
		if extracted[i].err != nil {
			uc.logger.Error("document_extract_failed", "doc_id", doc.DocID, "error", extracted[i].err)
			report.FailedDocs = append(report.FailedDocs, doc.DocID)
			continue
		}
		report.Documents++
		for p, raw := range extracted[i].pages {
			page := p + 1
			report.Pages++
			for _, text := range uc.chunker.Split(uc.cleaner.Clean(raw)) {
				if strings.TrimSpace(text) == "" {
					continue
				}
				counter++
				chunks = append(chunks, domain.Chunk{
					ID:       fmt.Sprintf("%s_p%d_c%d", doc.DocID, page, counter),
					Text:     text,
					Metadata: doc.Metadata(page),
				})
			}
		}
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrIngestion, "chunk corpus", errors.New("no chunks produced"))
	}

	records, err := uc.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if uc.writer != nil {
		if err := uc.writer.UpsertChunks(ctx, records); err != nil {
			return nil, fmt.Errorf("upsert chunks: %w", err)
		}
	}
	if uc.sink != nil {
		if err := uc.sink.WriteChunks(ctx, records); err != nil {
			return nil, fmt.Errorf("write chunks: %w", err)
		}
	}

	report.Chunks = len(records)
	uc.logger.Info("corpus_ingested",
		"documents", report.Documents,
		"pages", report.Pages,
		"chunks", report.Chunks,
		"failed", len(report.FailedDocs),
		"missing", len(report.MissingFiles),
	)
	return report, nil
}

func (uc *IngestCorpusUseCase) extractAll(ctx context.Context, docs []domain.SourceDocument, skip map[string]struct{}) ([]extractedDoc, error) {
	pool, err := ants.NewPool(uc.settings.Workers)
	if err != nil {
		return nil, fmt.Errorf("create extract pool: %w", err)
	}
	defer pool.Release()

	out := make([]extractedDoc, len(docs))
	var wg sync.WaitGroup
	for i, doc := range docs {
		if _, ok := skip[doc.StorageKey()]; ok {
			continue
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			pages, err := uc.extractPages(ctx, doc)
			out[i] = extractedDoc{pages: pages, err: err}
		}); err != nil {
			wg.Done()
			out[i] = extractedDoc{err: fmt.Errorf("submit extract task: %w", err)}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *IngestCorpusUseCase) extractPages(ctx context.Context, doc domain.SourceDocument) ([]string, error) {
	rc, err := uc.storage.Open(ctx, doc.StorageKey())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", doc.StorageKey(), err)
	}
	defer rc.Close()

	pages, err := uc.extractor.ExtractPages(ctx, rc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", doc.StorageKey(), err)
	}
	return pages, nil
}

func (uc *IngestCorpusUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([]domain.ChunkRecord, error) {
	records := make([]domain.ChunkRecord, 0, len(chunks))
	batch := uc.settings.EmbedBatchSize
	for start := 0; start < len(chunks); start += batch {
		end := start + batch
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrIngestion,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
			)
		}
		for i, c := range chunks[start:end] {
			records = append(records, domain.ChunkRecord{Chunk: c, Embedding: vectors[i]})
		}
	}
	return records, nil
}

func validateManifest(docs []domain.SourceDocument) error {
	if len(docs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate manifest", errors.New("manifest has no documents"))
	}
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.DocID) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate manifest", fmt.Errorf("entry %d has no doc_id", i))
		}
		if strings.TrimSpace(d.Filename) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "validate manifest", fmt.Errorf("entry %s has no filename", d.DocID))
		}
		if _, dup := seen[d.DocID]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "validate manifest", fmt.Errorf("duplicate doc_id %s", d.DocID))
		}
		seen[d.DocID] = struct{}{}
	}
	return nil
}
