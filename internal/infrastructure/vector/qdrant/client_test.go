package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
)

func testRecords() []domain.ChunkRecord {
	return []domain.ChunkRecord{
		{Chunk: domain.Chunk{ID: "pub519_p1_c1", Text: "a", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 1, DocID: "pub519"}}, Embedding: []float32{0.1, 0.2}},
		{Chunk: domain.Chunk{ID: "pub519_p1_c2", Text: "b", Metadata: domain.ChunkMetadata{Title: "Pub 519", PageNumber: 1, DocID: "pub519"}}, Embedding: []float32{0.3, 0.4}},
	}
}

func TestUpsertChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upserted []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/tax_docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/tax_docs/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			upserted = append(upserted, body.Points...)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "tax_docs")
	if err := client.UpsertChunks(context.Background(), testRecords()); err != nil {
		t.Fatalf("first UpsertChunks() error = %v", err)
	}
	if err := client.UpsertChunks(context.Background(), testRecords()); err != nil {
		t.Fatalf("second UpsertChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(upserted) != 4 {
		t.Fatalf("expected 4 points, got %d", len(upserted))
	}
	if upserted[0]["id"] != upserted[2]["id"] {
		t.Fatalf("point ids must be stable across upserts")
	}
	payload := upserted[0]["payload"].(map[string]any)
	if payload["chunk_id"] != "pub519_p1_c1" || payload["title"] != "Pub 519" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestUpsertChunksConflictOnEnsureIsOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/tax_docs" {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := New(server.URL, "tax_docs").UpsertChunks(context.Background(), testRecords()); err != nil {
		t.Fatalf("UpsertChunks() error = %v", err)
	}
}

func TestUpsertChunksRejectsMixedDimensions(t *testing.T) {
	records := testRecords()
	records[1].Embedding = []float32{1}
	err := New("http://unused", "tax_docs").UpsertChunks(context.Background(), records)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/tax_docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := New(server.URL, "tax_docs").UpsertChunks(context.Background(), testRecords()[:1])
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("500 must be marked temporary, got %v", err)
	}
}

func TestQueryConvertsScoreToDistance(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/tax_docs/points/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"chunk_id":"C"}},
			{"score":-0.8,"payload":{"chunk_id":"B"}},
			{"score":0.5,"payload":{}}
		]}`))
	}))
	defer server.Close()

	hits, err := New(server.URL, "tax_docs").Query(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected hits without chunk_id to be dropped, got %+v", hits)
	}
	if hits[0].ChunkID != "C" || math.Abs(hits[0].Distance-0.1) > 1e-9 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if math.Abs(hits[1].Distance-1.8) > 1e-9 {
		t.Fatalf("unexpected second hit: %+v", hits[1])
	}
	if captured["limit"].(float64) != 3 {
		t.Fatalf("unexpected request: %v", captured)
	}
}

func TestQueryRetriesThroughExecutor(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":[{"score":1,"payload":{"chunk_id":"A"}}]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		BreakerEnabled:      false,
	})
	hits, err := New(server.URL, "tax_docs", WithExecutor(exec)).Query(context.Background(), []float32{1}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Distance != 0 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestLoadRecordsScrollsAllPages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/tax_docs/points/scroll" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if atomic.AddInt32(&calls, 1) == 1 {
			if _, ok := body["offset"]; ok {
				t.Errorf("first page must not send offset")
			}
			_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"chunk_id":"a","text":"one","title":"Pub 519","page_number":3,"doc_id":"pub519","extra":{"form":"8843"}}}],"next_page_offset":"p2"}}`))
			return
		}
		if body["offset"] != "p2" {
			t.Errorf("expected offset p2, got %v", body["offset"])
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"chunk_id":"b","text":"two"}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	records, err := New(server.URL, "tax_docs").LoadRecords(context.Background())
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	first := records[0]
	if first.ID != "a" || first.Metadata.PageNumber != 3 || first.Metadata.Title != "Pub 519" || first.Metadata.Extra["form"] != "8843" {
		t.Fatalf("unexpected record: %+v", first)
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	if PointID("x") != PointID("x") || PointID("x") == PointID("y") {
		t.Fatalf("point ids must be a stable function of chunk id")
	}
}
