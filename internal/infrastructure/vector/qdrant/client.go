package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
)

const upsertBatchSize = 128

// pointNamespace derives stable point ids from chunk ids so re-ingesting a
// chunk overwrites its previous point.
var pointNamespace = uuid.MustParse("6f1c2a4e-8b3d-4f5a-9c7e-2d1b0a9e8f7c")

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

type Option func(*Client)

// WithExecutor routes every request through the retry/circuit breaker executor.
func WithExecutor(exec *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = exec
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// UpsertChunks stores records with their chunk payload. All embeddings must
// share one dimension.
func (c *Client) UpsertChunks(ctx context.Context, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	size := len(records[0].Embedding)
	if size == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert", fmt.Errorf("record %s has no embedding", records[0].ID))
	}
	for _, rec := range records {
		if len(rec.Embedding) != size {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant upsert",
				fmt.Errorf("record %s has %d dimensions, expected %d", rec.ID, len(rec.Embedding), size))
		}
	}

	if err := c.ensureCollection(ctx, size); err != nil {
		return err
	}

	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		points := make([]point, 0, end-start)
		for _, rec := range records[start:end] {
			points = append(points, point{
				ID:      PointID(rec.ID),
				Vector:  rec.Embedding,
				Payload: chunkPayload(rec.Chunk),
			})
		}

		url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
		if err := c.call(ctx, "qdrant_upsert", http.MethodPut, url, map[string]any{"points": points}, nil); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the k nearest chunks. Qdrant reports cosine similarity, which
// is converted to a cosine distance on [0,2].
func (c *Client) Query(ctx context.Context, embedding []float32, k int) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       embedding,
		"limit":        k,
		"with_payload": []string{"chunk_id"},
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.call(ctx, "qdrant_query", http.MethodPost, url, reqBody, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.VectorHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		id := getStringPayload(r.Payload, "chunk_id")
		if id == "" {
			continue
		}
		out = append(out, domain.VectorHit{ChunkID: id, Distance: 1 - r.Score})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.call(ctx, "qdrant_ensure_collection", http.MethodPut, url, reqBody, nil)
	if err != nil && !isConflict(err) {
		return err
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func chunkPayload(ch domain.Chunk) map[string]any {
	payload := map[string]any{
		"chunk_id":    ch.ID,
		"text":        ch.Text,
		"title":       ch.Metadata.Title,
		"page_number": ch.Metadata.PageNumber,
		"doc_id":      ch.Metadata.DocID,
		"source_type": ch.Metadata.SourceType,
		"year":        ch.Metadata.Year,
		"country":     ch.Metadata.Country,
	}
	if len(ch.Metadata.Extra) > 0 {
		payload["extra"] = ch.Metadata.Extra
	}
	return payload
}

func chunkFromPayload(payload map[string]any) domain.Chunk {
	ch := domain.Chunk{
		ID:   getStringPayload(payload, "chunk_id"),
		Text: getStringPayload(payload, "text"),
		Metadata: domain.ChunkMetadata{
			Title:      getStringPayload(payload, "title"),
			PageNumber: getIntPayload(payload, "page_number"),
			DocID:      getStringPayload(payload, "doc_id"),
			SourceType: getStringPayload(payload, "source_type"),
			Year:       getStringPayload(payload, "year"),
			Country:    getStringPayload(payload, "country"),
		},
	}
	if raw, ok := payload["extra"].(map[string]any); ok && len(raw) > 0 {
		ch.Metadata.Extra = make(map[string]string, len(raw))
		for k, v := range raw {
			ch.Metadata.Extra[k] = fmt.Sprintf("%v", v)
		}
	}
	return ch
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
