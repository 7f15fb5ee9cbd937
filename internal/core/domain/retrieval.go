package domain

import "math"

// Query is the enriched question text plus the caller-owned embedding.
type Query struct {
	Text      string
	Embedding []float32
}

// VectorHit is one nearest-neighbour answer from the vector index.
// Distance is cosine distance on [0,2], 0 meaning identical.
type VectorHit struct {
	ChunkID  string
	Distance float64
}

// RetrievalResult is the ordered, deduplicated output of hybrid retrieval.
// Confidence is the similarity of the single best vector hit, not a fused score.
type RetrievalResult struct {
	Chunks     []Chunk `json:"chunks"`
	Confidence float64 `json:"confidence"`
}

// ConfidenceFromDistance converts a cosine distance into a [0,1] similarity.
// An undefined distance yields 0 so the confidence floor refuses it.
func ConfidenceFromDistance(distance float64) float64 {
	c := 1 - distance/2
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
