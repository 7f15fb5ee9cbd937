// Package jsonl stores ingested chunks as one JSON object per line.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const maxLineBytes = 16 << 20

// File is both the chunk sink written by ingestion and the corpus source read
// at startup.
type File struct {
	path string
}

func New(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// WriteChunks replaces the file contents with records. The write goes to a
// temporary file first so readers never observe a partial corpus.
func (f *File) WriteChunks(ctx context.Context, records []domain.ChunkRecord) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".chunks-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		if err := enc.Encode(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("encode chunk %s: %w", rec.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}

// LoadRecords reads every record. Blank lines are skipped; a malformed line
// fails the load with its line number.
func (f *File) LoadRecords(ctx context.Context) ([]domain.ChunkRecord, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "open corpus", err)
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []domain.ChunkRecord
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec domain.ChunkRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load corpus", fmt.Errorf("line %d: %w", line, err))
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}
	return records, nil
}
