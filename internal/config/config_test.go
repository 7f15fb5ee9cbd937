package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	for _, key := range []string{
		"RAG_TOP_K", "RAG_CANDIDATE_K", "RAG_FUSION_RRF_K", "RAG_BM25_K1", "RAG_BM25_B",
		"RAG_CONFIDENCE_THRESHOLD", "RAG_VECTOR_TIMEOUT", "DOMAIN_KEYWORDS", "CORPUS_SOURCE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RAGTopK != 5 || cfg.RAGCandidateK != 20 || cfg.RAGFusionRRFK != 60 {
		t.Fatalf("unexpected k defaults: %d/%d/%d", cfg.RAGTopK, cfg.RAGCandidateK, cfg.RAGFusionRRFK)
	}
	if cfg.RAGBM25K1 != 1.5 || cfg.RAGBM25B != 0.75 {
		t.Fatalf("unexpected bm25 defaults: %v/%v", cfg.RAGBM25K1, cfg.RAGBM25B)
	}
	if cfg.RAGConfidenceThreshold != 0.70 {
		t.Fatalf("expected threshold 0.70, got %v", cfg.RAGConfidenceThreshold)
	}
	if cfg.RAGVectorTimeout != 5*time.Second {
		t.Fatalf("expected vector timeout 5s, got %v", cfg.RAGVectorTimeout)
	}
	if cfg.DomainKeywords != nil {
		t.Fatalf("expected nil keywords so the gate uses its defaults, got %v", cfg.DomainKeywords)
	}
	if cfg.CorpusSource != "jsonl" {
		t.Fatalf("expected jsonl corpus source, got %q", cfg.CorpusSource)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_CANDIDATE_K", "40")
	t.Setenv("RAG_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("RAG_VECTOR_TIMEOUT", "2")
	t.Setenv("DOMAIN_KEYWORDS", " tax, treaty ,,W-2 ")
	t.Setenv("GENERATOR_PROVIDER", "Gemini")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.RAGCandidateK != 40 {
		t.Fatalf("expected candidate k 40, got %d", cfg.RAGCandidateK)
	}
	if cfg.RAGConfidenceThreshold != 0.55 {
		t.Fatalf("expected threshold 0.55, got %v", cfg.RAGConfidenceThreshold)
	}
	if cfg.RAGVectorTimeout != 2*time.Second {
		t.Fatalf("expected bare seconds to parse, got %v", cfg.RAGVectorTimeout)
	}
	if !reflect.DeepEqual(cfg.DomainKeywords, []string{"tax", "treaty", "W-2"}) {
		t.Fatalf("unexpected keywords: %v", cfg.DomainKeywords)
	}
	if cfg.GeneratorProvider != "gemini" {
		t.Fatalf("expected lowercased provider, got %q", cfg.GeneratorProvider)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RAG_TOP_K", "many")
	t.Setenv("RAG_BM25_K1", "x")
	t.Setenv("RAG_VECTOR_TIMEOUT", "soon")

	cfg := Load()
	if cfg.RAGTopK != 5 || cfg.RAGBM25K1 != 1.5 || cfg.RAGVectorTimeout != 5*time.Second {
		t.Fatalf("invalid values should fall back: %+v", cfg)
	}
}
