package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

// InteractionRepository stores query and feedback logs.
type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) RecordQuery(ctx context.Context, rec domain.QueryLogRecord) error {
	sourceIDs := rec.SourceIDs
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	idsJSON, err := json.Marshal(sourceIDs)
	if err != nil {
		return fmt.Errorf("marshal source ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_log (
	asked_at, question, outcome, confidence, retrieval_ms, generation_ms, total_ms, prompt_tokens, completion_tokens, source_ids, used_fallback
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		rec.Timestamp, rec.Question, string(rec.Outcome), rec.Confidence, rec.RetrievalMS, rec.GenerationMS, rec.TotalMS,
		rec.PromptTokens, rec.CompletionTokens, idsJSON, rec.UsedFallback,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (r *InteractionRepository) RecordFeedback(ctx context.Context, rec domain.FeedbackRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_log (submitted_at, question, answer, helpful)
VALUES ($1,$2,$3,$4)
`, rec.Timestamp, rec.Question, rec.Answer, rec.Helpful)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// OutcomeCounts returns how many logged queries ended in each outcome.
func (r *InteractionRepository) OutcomeCounts(ctx context.Context) (map[domain.AnswerOutcome]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT outcome, COUNT(*)
FROM query_log
GROUP BY outcome
`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AnswerOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		out[domain.AnswerOutcome(outcome)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}
