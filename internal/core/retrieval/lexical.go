package retrieval

import (
	"errors"
	"math"
	"sort"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

type BM25Params struct {
	K1 float64
	B  float64
}

func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75}
}

func (p BM25Params) normalize() BM25Params {
	def := DefaultBM25Params()
	if p.K1 <= 0 {
		p.K1 = def.K1
	}
	if p.B < 0 || p.B > 1 {
		p.B = def.B
	}
	return p
}

// LexicalIndex is an in-memory BM25 index over the whole corpus.
type LexicalIndex struct {
	params    BM25Params
	docFreq   map[string]int
	termFreqs []map[string]int
	docLens   []int
	avgLen    float64
}

func BuildLexicalIndex(corpus [][]string, params BM25Params) (*LexicalIndex, error) {
	if len(corpus) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "build lexical index", errors.New("zero documents"))
	}

	ix := &LexicalIndex{
		params:    params.normalize(),
		docFreq:   make(map[string]int, 1024),
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]int, len(corpus)),
	}

	total := 0
	for i, tokens := range corpus {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for term := range tf {
			ix.docFreq[term]++
		}
		ix.termFreqs[i] = tf
		ix.docLens[i] = len(tokens)
		total += len(tokens)
	}
	ix.avgLen = float64(total) / float64(len(corpus))
	return ix, nil
}

func (ix *LexicalIndex) Len() int {
	return len(ix.docLens)
}

func (ix *LexicalIndex) idf(term string) float64 {
	df := ix.docFreq[term]
	if df == 0 {
		return 0
	}
	n := float64(len(ix.docLens))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// Score returns one BM25 score per document in build order.
func (ix *LexicalIndex) Score(queryTokens []string) []float64 {
	scores := make([]float64, len(ix.docLens))
	if len(queryTokens) == 0 {
		return scores
	}

	k1, b := ix.params.K1, ix.params.B
	for _, term := range queryTokens {
		idf := ix.idf(term)
		if idf == 0 {
			continue
		}
		for i, tf := range ix.termFreqs {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			lengthNorm := 1.0
			if ix.avgLen > 0 {
				lengthNorm = 1 - b + b*float64(ix.docLens[i])/ix.avgLen
			}
			scores[i] += idf * (freq * (k1 + 1)) / (freq + k1*lengthNorm)
		}
	}
	return scores
}

// TopK returns up to k document positions by descending score. Equal scores
// keep ascending corpus position.
func (ix *LexicalIndex) TopK(queryTokens []string, k int) []int {
	if k <= 0 {
		return nil
	}
	scores := ix.Score(queryTokens)
	positions := make([]int, len(scores))
	for i := range positions {
		positions[i] = i
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return scores[positions[i]] > scores[positions[j]]
	})
	if k < len(positions) {
		positions = positions[:k]
	}
	return positions
}
