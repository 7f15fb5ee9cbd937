package domain

import "time"

type AnswerOutcome string

const (
	OutcomeAnswered      AnswerOutcome = "answered"
	OutcomeOffTopic      AnswerOutcome = "off_topic"
	OutcomeLowConfidence AnswerOutcome = "low_confidence"
)

// AnswerRequest is what the generation collaborator receives.
type AnswerRequest struct {
	Question string
	Profile  StudentProfile
	Chunks   []Chunk
}

type Latency struct {
	Retrieval  time.Duration `json:"retrieval"`
	Generation time.Duration `json:"generation"`
	Total      time.Duration `json:"total"`
}

type TokenEstimate struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

type Answer struct {
	Outcome       AnswerOutcome `json:"outcome"`
	Text          string        `json:"text"`
	Sources       []Chunk       `json:"sources,omitempty"`
	Confidence    float64       `json:"confidence"`
	UsedFallback  bool          `json:"used_fallback,omitempty"`
	Latency       Latency       `json:"latency"`
	TokenEstimate TokenEstimate `json:"token_estimate"`
}

// QueryLogRecord is one line of the append-only query log.
type QueryLogRecord struct {
	Timestamp        time.Time     `json:"timestamp"`
	Question         string        `json:"question"`
	Outcome          AnswerOutcome `json:"outcome"`
	Confidence       float64       `json:"confidence"`
	RetrievalMS      float64       `json:"retrieval_ms"`
	GenerationMS     float64       `json:"generation_ms"`
	TotalMS          float64       `json:"total_ms"`
	PromptTokens     int           `json:"prompt_tokens_est"`
	CompletionTokens int           `json:"completion_tokens_est"`
	SourceIDs        []string      `json:"source_ids,omitempty"`
	UsedFallback     bool          `json:"used_fallback,omitempty"`
}

// FeedbackRecord is one line of the append-only feedback log.
type FeedbackRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Helpful   bool      `json:"helpful"`
}

// EstimateTokens is the rough four-characters-per-token heuristic.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
