package ports

import (
	"context"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

// Retriever is the hybrid retrieval contract.
type Retriever interface {
	Retrieve(ctx context.Context, query domain.Query, topK, candidateK int) (*domain.RetrievalResult, error)
}

// Advisor is the inbound contract for answering a student's question end to end.
type Advisor interface {
	Ask(ctx context.Context, profile domain.StudentProfile, question string) (*domain.Answer, error)
}

// Searcher runs gated retrieval without generation.
type Searcher interface {
	Search(ctx context.Context, profile domain.StudentProfile, question string, topK int) (*domain.RetrievalResult, error)
}

// FeedbackService records a binary rating for a delivered answer.
type FeedbackService interface {
	Submit(ctx context.Context, question, answer string, helpful bool) error
}
