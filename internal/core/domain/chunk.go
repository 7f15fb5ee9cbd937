package domain

import (
	"strconv"
	"strings"
)

// ChunkMetadata is the citation data attached to every chunk.
type ChunkMetadata struct {
	Title      string            `json:"title"`
	PageNumber int               `json:"page_number"`
	DocID      string            `json:"doc_id"`
	SourceType string            `json:"source_type,omitempty"`
	Year       string            `json:"year,omitempty"`
	Country    string            `json:"country,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Chunk is an immutable unit of retrievable text.
type Chunk struct {
	ID       string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Citation renders the "[title - p.N]" label used in prompts and fallbacks.
func (c Chunk) Citation() string {
	title := strings.TrimSpace(c.Metadata.Title)
	if title == "" {
		title = "Unknown"
	}
	if c.Metadata.PageNumber <= 0 {
		return "[" + title + " - p.?]"
	}
	return "[" + title + " - p." + strconv.Itoa(c.Metadata.PageNumber) + "]"
}

// ChunkRecord is what the ingestion side produces: a chunk plus its embedding.
type ChunkRecord struct {
	Chunk
	Embedding []float32 `json:"embedding,omitempty"`
}
