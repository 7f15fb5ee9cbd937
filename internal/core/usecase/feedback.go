package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const feedbackAnswerMaxRunes = 300

type FeedbackUseCase struct {
	interactions ports.InteractionLog
	now          func() time.Time
}

func NewFeedbackUseCase(interactions ports.InteractionLog) *FeedbackUseCase {
	return &FeedbackUseCase{interactions: interactions, now: time.Now}
}

func (uc *FeedbackUseCase) Submit(ctx context.Context, question, answer string, helpful bool) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.WrapError(domain.ErrInvalidInput, "submit feedback", errors.New("question is required"))
	}

	rec := domain.FeedbackRecord{
		Timestamp: uc.now().UTC(),
		Question:  question,
		Answer:    truncateRunes(answer, feedbackAnswerMaxRunes),
		Helpful:   helpful,
	}
	if err := uc.interactions.RecordFeedback(ctx, rec); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
