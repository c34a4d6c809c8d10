package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Memory keeps the pool in process. Used when no database path is
// configured, and in tests.
type Memory struct {
	mu        sync.RWMutex
	questions []*question.Question
}

// NewMemory creates a Memory store holding a copy of questions.
func NewMemory(questions []*question.Question) *Memory {
	return &Memory{questions: question.CloneAll(questions)}
}

func (m *Memory) LoadAll(context.Context) ([]*question.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return question.CloneAll(m.questions), nil
}

func (m *Memory) SaveAll(_ context.Context, questions []*question.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = question.CloneAll(questions)
	return nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.questions), nil
}

// Store is the persistence contract shared by every backend.
type Store interface {
	LoadAll(ctx context.Context) ([]*question.Question, error)
	SaveAll(ctx context.Context, questions []*question.Question) error
	Count(ctx context.Context) (int, error)
}

// Seed writes questions into s when it is empty. It reports whether the
// seed was applied.
func Seed(ctx context.Context, s Store, questions []*question.Question) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 || len(questions) == 0 {
		return false, nil
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return false, fmt.Errorf("seed: %w", err)
		}
	}
	if err := s.SaveAll(ctx, questions); err != nil {
		return false, fmt.Errorf("seed: %w", err)
	}
	slog.Info("seeded question pool", "questions", len(questions))
	return true, nil
}
