package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type embedderFake struct {
	mu      sync.Mutex
	queries []string
	err     error
	vector  []float32
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec()
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vec(), nil
}

func (f *embedderFake) vec() []float32 {
	if f.vector != nil {
		return f.vector
	}
	return []float32{0.1, 0.2, 0.3}
}

type retrieverFake struct {
	result     *domain.RetrievalResult
	err        error
	calls      int
	query      domain.Query
	topK       int
	candidateK int
}

func (f *retrieverFake) Retrieve(_ context.Context, q domain.Query, topK, candidateK int) (*domain.RetrievalResult, error) {
	f.calls++
	f.query = q
	f.topK = topK
	f.candidateK = candidateK
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type generatorFake struct {
	text  string
	err   error
	calls int
	req   domain.AnswerRequest
}

func (f *generatorFake) GenerateAnswer(_ context.Context, req domain.AnswerRequest) (string, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type interactionLogFake struct {
	queries  []domain.QueryLogRecord
	feedback []domain.FeedbackRecord
	err      error
}

func (f *interactionLogFake) RecordQuery(_ context.Context, rec domain.QueryLogRecord) error {
	if f.err != nil {
		return f.err
	}
	f.queries = append(f.queries, rec)
	return nil
}

func (f *interactionLogFake) RecordFeedback(_ context.Context, rec domain.FeedbackRecord) error {
	if f.err != nil {
		return f.err
	}
	f.feedback = append(f.feedback, rec)
	return nil
}

type recorderFake struct {
	retrievals []float64
	refusals   []domain.AnswerOutcome
	fallbacks  int
	failures   int
}

func (f *recorderFake) RecordRetrieval(_ time.Duration, confidence float64) {
	f.retrievals = append(f.retrievals, confidence)
}

func (f *recorderFake) RecordRefusal(reason domain.AnswerOutcome) {
	f.refusals = append(f.refusals, reason)
}

func (f *recorderFake) RecordGenerationFallback() {
	f.fallbacks++
}

func (f *recorderFake) RecordRetrievalFailure() {
	f.failures++
}

type storageFake struct {
	files   map[string]string
	listErr error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = string(b)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewBufferString(body)), nil
}

func (f *storageFake) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.files[key]
	return ok, nil
}

func (f *storageFake) List(_ context.Context, prefix string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for key := range f.files {
		if prefix == "" || strings.HasPrefix(key, prefix+"/") {
			out = append(out, key)
		}
	}
	return out, nil
}

// pageExtractorFake treats form feeds as page breaks and fails on "BROKEN".
type pageExtractorFake struct{}

func (pageExtractorFake) ExtractPages(_ context.Context, r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if string(b) == "BROKEN" {
		return nil, errors.New("malformed pdf")
	}
	return strings.Split(string(b), "\f"), nil
}

type identityCleaner struct{}

func (identityCleaner) Clean(text string) string { return strings.TrimSpace(text) }

// sentenceChunker splits on ". " so tests can predict chunk counts.
type sentenceChunker struct{}

func (sentenceChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Split(text, ". ")
}

type vectorWriterFake struct {
	records []domain.ChunkRecord
	err     error
}

func (f *vectorWriterFake) UpsertChunks(_ context.Context, records []domain.ChunkRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

type chunkSinkFake struct {
	records []domain.ChunkRecord
}

func (f *chunkSinkFake) WriteChunks(_ context.Context, records []domain.ChunkRecord) error {
	f.records = append(f.records, records...)
	return nil
}
