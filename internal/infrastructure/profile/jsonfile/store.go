// Package jsonfile keeps student profiles in a single JSON document keyed by
// profile id. The CLI uses it to remember the intake between sessions.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

const DefaultID = "default"

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) SaveProfile(_ context.Context, p domain.StudentProfile) error {
	if p.ID == "" {
		p.ID = DefaultID
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	all[p.ID] = p

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.StudentProfile, error) {
	if id == "" {
		id = DefaultID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	p, ok := all[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProfileNotFound, "get profile", fmt.Errorf("id=%s", id))
	}
	return &p, nil
}

func (s *Store) readAll() (map[string]domain.StudentProfile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]domain.StudentProfile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	all := map[string]domain.StudentProfile{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode profiles", err)
	}
	return all, nil
}
