package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string
	APIKey   string

	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration

	PostgresDSN string

	NATSURL           string
	NATSSubjectPrefix string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	GeneratorProvider string
	GeminiAPIKey      string
	GeminiModel       string

	QdrantURL        string
	QdrantCollection string

	CorpusSource    string
	CorpusPath      string
	CorpusRoot      string
	ManifestPath    string
	ProfilePath     string
	QueryLogPath    string
	FeedbackLogPath string
	EmbedCachePath  string

	RAGTopK                int
	RAGCandidateK          int
	RAGFusionRRFK          int
	RAGBM25K1              float64
	RAGBM25B               float64
	RAGConfidenceThreshold float64
	RAGVectorTimeout       time.Duration
	DomainKeywords         []string

	IngestChunkWords   int
	IngestOverlapWords int
	IngestWorkers      int
	IngestEmbedBatch   int

	ResilienceAttemptTimeout time.Duration
	ResilienceBreakerEnabled bool

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		APIKey:   mustEnv("API_KEY", ""),

		APIRateLimitRPS:     mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:   mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:      mustEnvInt("API_MAX_IN_FLIGHT", 0),
		APIBackpressureWait: mustEnvDuration("API_BACKPRESSURE_WAIT", 250*time.Millisecond),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:           mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: mustEnv("NATS_SUBJECT_PREFIX", "advisor.interactions"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		GeneratorProvider: strings.ToLower(mustEnv("GENERATOR_PROVIDER", "ollama")),
		GeminiAPIKey:      mustEnv("GEMINI_API_KEY", ""),
		GeminiModel:       mustEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "tax_documents"),

		CorpusSource:    strings.ToLower(mustEnv("CORPUS_SOURCE", "jsonl")),
		CorpusPath:      mustEnv("CORPUS_PATH", "./data/processed/chunks.jsonl"),
		CorpusRoot:      mustEnv("CORPUS_ROOT", "./data/raw"),
		ManifestPath:    mustEnv("MANIFEST_PATH", "./data/corpus.yaml"),
		ProfilePath:     mustEnv("PROFILE_PATH", "./data/user_profile.json"),
		QueryLogPath:    mustEnv("QUERY_LOG_PATH", "./logs/queries.jsonl"),
		FeedbackLogPath: mustEnv("FEEDBACK_LOG_PATH", "./logs/feedback.jsonl"),
		EmbedCachePath:  mustEnv("EMBED_CACHE_PATH", ""),

		RAGTopK:                mustEnvInt("RAG_TOP_K", 5),
		RAGCandidateK:          mustEnvInt("RAG_CANDIDATE_K", 20),
		RAGFusionRRFK:          mustEnvInt("RAG_FUSION_RRF_K", 60),
		RAGBM25K1:              mustEnvFloat("RAG_BM25_K1", 1.5),
		RAGBM25B:               mustEnvFloat("RAG_BM25_B", 0.75),
		RAGConfidenceThreshold: mustEnvFloat("RAG_CONFIDENCE_THRESHOLD", 0.70),
		RAGVectorTimeout:       mustEnvDuration("RAG_VECTOR_TIMEOUT", 5*time.Second),
		DomainKeywords:         mustEnvList("DOMAIN_KEYWORDS", nil),

		IngestChunkWords:   mustEnvInt("INGEST_CHUNK_WORDS", 500),
		IngestOverlapWords: mustEnvInt("INGEST_OVERLAP_WORDS", 100),
		IngestWorkers:      mustEnvInt("INGEST_WORKERS", 4),
		IngestEmbedBatch:   mustEnvInt("INGEST_EMBED_BATCH", 32),

		ResilienceAttemptTimeout: mustEnvDuration("RESILIENCE_ATTEMPT_TIMEOUT", 0),
		ResilienceBreakerEnabled: mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// mustEnvDuration accepts Go durations ("5s") or bare seconds ("5").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
