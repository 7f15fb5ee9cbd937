package domain

import "path"

// SourceDocument is one manifest entry describing a reference PDF.
type SourceDocument struct {
	DocID      string `json:"doc_id" yaml:"doc_id"`
	Title      string `json:"title" yaml:"title"`
	SourceType string `json:"source_type" yaml:"source_type"`
	Year       string `json:"year,omitempty" yaml:"year"`
	Country    string `json:"country,omitempty" yaml:"country"`
	Folder     string `json:"folder" yaml:"folder"`
	Filename   string `json:"filename" yaml:"filename"`
}

// StorageKey is the document's location relative to the corpus root.
func (d SourceDocument) StorageKey() string {
	return path.Join(d.Folder, d.Filename)
}

// Metadata returns chunk metadata for the given 1-based page.
func (d SourceDocument) Metadata(page int) ChunkMetadata {
	return ChunkMetadata{
		Title:      d.Title,
		PageNumber: page,
		DocID:      d.DocID,
		SourceType: d.SourceType,
		Year:       d.Year,
		Country:    d.Country,
	}
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Documents     int      `json:"documents"`
	Pages         int      `json:"pages"`
	Chunks        int      `json:"chunks"`
	MissingFiles  []string `json:"missing_files,omitempty"`
	FailedDocs    []string `json:"failed_docs,omitempty"`
	UnlistedFiles []string `json:"unlisted_files,omitempty"`
}

// GroundTruthCase is one evaluation question with keywords that must all
// appear somewhere in the retrieved context.
type GroundTruthCase struct {
	Question         string   `json:"question"`
	ExpectedKeywords []string `json:"expected_keywords"`
}

// EvalCaseResult scores one question. AnswerRelevance and Faithfulness are
// only set when answers are generated.
type EvalCaseResult struct {
	Question         string   `json:"question"`
	Hit              bool     `json:"hit"`
	ContextRelevance float64  `json:"context_relevance"`
	AnswerRelevance  *float64 `json:"answer_relevance,omitempty"`
	Faithfulness     *float64 `json:"faithfulness,omitempty"`
	Confidence       float64  `json:"confidence"`
	RetrievedIDs     []string `json:"retrieved_ids"`
	MissingKeywords  []string `json:"missing_keywords,omitempty"`
}

type EvalReport struct {
	Cases               []EvalCaseResult `json:"cases"`
	HitRate             float64          `json:"hit_rate"`
	AvgContextRelevance float64          `json:"avg_context_relevance"`
	AvgAnswerRelevance  *float64         `json:"avg_answer_relevance,omitempty"`
	AvgFaithfulness     *float64         `json:"avg_faithfulness,omitempty"`
}
