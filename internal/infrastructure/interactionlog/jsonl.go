// Package interactionlog persists query and feedback records.
package interactionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

// JSONL appends one JSON object per line to the query and feedback files.
type JSONL struct {
	mu           sync.Mutex
	queryPath    string
	feedbackPath string
}

func NewJSONL(queryPath, feedbackPath string) *JSONL {
	return &JSONL{queryPath: queryPath, feedbackPath: feedbackPath}
}

func (l *JSONL) RecordQuery(_ context.Context, record domain.QueryLogRecord) error {
	return l.append(l.queryPath, record)
}

func (l *JSONL) RecordFeedback(_ context.Context, record domain.FeedbackRecord) error {
	return l.append(l.feedbackPath, record)
}

func (l *JSONL) append(path string, v any) error {
	if path == "" {
		return nil
	}
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append log: %w", err)
	}
	return f.Close()
}

// Tee forwards every record to all logs and joins their errors.
type Tee []ports.InteractionLog

func (t Tee) RecordQuery(ctx context.Context, record domain.QueryLogRecord) error {
	var errs []error
	for _, l := range t {
		if l == nil {
			continue
		}
		if err := l.RecordQuery(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t Tee) RecordFeedback(ctx context.Context, record domain.FeedbackRecord) error {
	var errs []error
	for _, l := range t {
		if l == nil {
			continue
		}
		if err := l.RecordFeedback(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
