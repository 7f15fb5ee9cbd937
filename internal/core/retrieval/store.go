package retrieval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

// TextEntry pairs a chunk id with its text in store order.
type TextEntry struct {
	ID   string
	Text string
}

// ChunkStore is the read-only id -> chunk repository built once at startup.
// It is never mutated after LoadChunkStore returns, so concurrent reads need no locking.
type ChunkStore struct {
	byID  map[string]domain.Chunk
	order []string
}

// LoadChunkStore validates and indexes ingested records. Any record with a
// missing id, blank text or an id seen before fails the whole load.
func LoadChunkStore(records []domain.ChunkRecord) (*ChunkStore, error) {
	s := &ChunkStore{
		byID:  make(map[string]domain.Chunk, len(records)),
		order: make([]string, 0, len(records)),
	}
	for i, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return nil, domain.WrapError(domain.ErrIngestion, "load chunk store", fmt.Errorf("record %d has no chunk_id", i))
		}
		if strings.TrimSpace(rec.Text) == "" {
			return nil, domain.WrapError(domain.ErrIngestion, "load chunk store", fmt.Errorf("record %d (%s) has empty text", i, id))
		}
		if _, dup := s.byID[id]; dup {
			return nil, domain.WrapError(domain.ErrIngestion, "load chunk store", fmt.Errorf("duplicate chunk_id %s", id))
		}
		chunk := rec.Chunk
		chunk.ID = id
		s.byID[id] = chunk
		s.order = append(s.order, id)
	}
	return s, nil
}

func (s *ChunkStore) Len() int {
	return len(s.order)
}

func (s *ChunkStore) Get(id string) (domain.Chunk, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Chunk is Get with a typed not-found error.
func (s *ChunkStore) Chunk(id string) (domain.Chunk, error) {
	c, ok := s.byID[id]
	if !ok {
		return domain.Chunk{}, domain.WrapError(domain.ErrChunkNotFound, "get chunk", errors.New("id="+id))
	}
	return c, nil
}

// AllTexts returns (id, text) pairs in load order. The order is stable for the
// lifetime of the store; lexical positions map back to ids through it.
func (s *ChunkStore) AllTexts() []TextEntry {
	out := make([]TextEntry, len(s.order))
	for i, id := range s.order {
		out[i] = TextEntry{ID: id, Text: s.byID[id].Text}
	}
	return out
}
