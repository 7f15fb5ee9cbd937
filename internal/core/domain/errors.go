package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrTemporary            = errors.New("temporary failure")
	ErrIngestion            = errors.New("ingestion error")
	ErrEmptyCorpus          = errors.New("empty corpus")
	ErrChunkNotFound        = errors.New("chunk not found")
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrOffTopic             = errors.New("question is off topic")
	ErrLowConfidence        = errors.New("retrieval confidence below threshold")
	ErrGenerationFailed     = errors.New("answer generation failed")
	ErrProfileNotFound      = errors.New("profile not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// LowConfidenceError is returned by the confidence floor and carries the score
// so callers can show it to the user.
type LowConfidenceError struct {
	Confidence float64
	Threshold  float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("retrieval confidence %.2f below threshold %.2f", e.Confidence, e.Threshold)
}

func (e *LowConfidenceError) Is(target error) bool {
	return target == ErrLowConfidence
}

// IsRetryable reports whether the caller may retry the whole query.
func IsRetryable(err error) bool {
	return IsKind(err, ErrRetrievalUnavailable) || IsKind(err, ErrTemporary)
}
