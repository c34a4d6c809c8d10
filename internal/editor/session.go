package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/questionflow/internal/metrics"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Store persists the full question pool as one snapshot.
type Store interface {
	LoadAll(ctx context.Context) ([]*question.Question, error)
	SaveAll(ctx context.Context, questions []*question.Question) error
}

// Session is one editor's working copy of the pool. It is safe for
// concurrent use.
type Session struct {
	mu       sync.Mutex
	store    Store
	snap     *Snapshot
	selected question.ID
	dirty    bool
}

// Open loads the pool from store and starts an editing session on it.
func Open(ctx context.Context, store Store) (*Session, error) {
	qs, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	s := &Session{store: store}
	s.apply(NewSnapshot(qs))
	s.dirty = false
	return s, nil
}

// Snapshot returns the current snapshot.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Tree returns the hierarchical view of the current snapshot.
func (s *Session) Tree() []*Node {
	return s.Snapshot().Tree()
}

// Warnings returns the layout warnings of the current snapshot.
func (s *Session) Warnings() []Warning {
	return s.Snapshot().Warnings()
}

// Dirty reports whether there are unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Select marks id as the question being edited. Unknown ids are ignored.
func (s *Session) Select(id question.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.snap.Has(id) {
		return false
	}
	s.selected = id
	return true
}

// Selected returns the selected question, if any.
func (s *Session) Selected() (*question.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == 0 {
		return nil, false
	}
	return s.snap.Get(s.selected)
}

// Add creates a question and selects it.
func (s *Session) Add(text string) question.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, id := s.snap.Add(text)
	s.apply(next)
	s.selected = id
	return id
}

// Delete removes id and every follow-up pointing at it. It reports whether
// anything was removed.
func (s *Session) Delete(id question.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap.Delete(id)
	if next == s.snap {
		return false
	}
	s.apply(next)
	if s.selected == id {
		s.selected = 0
	}
	return true
}

// Reorder moves dragged before target.
func (s *Session) Reorder(dragged, target question.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.snap.Reorder(dragged, target)
	if next == s.snap {
		return false
	}
	s.apply(next)
	return true
}

// Update replaces a question. Unknown ids are ignored.
func (s *Session) Update(q *question.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.snap.Update(q)
	if err != nil {
		return err
	}
	if next != s.snap {
		s.apply(next)
	}
	return nil
}

// SetFollowUp points the tok answer of id at target.
func (s *Session) SetFollowUp(id question.ID, tok string, target question.ID) error {
	return s.edit(id, func(q *question.Question) {
		if q.FollowUp == nil {
			q.FollowUp = make(map[string]question.ID)
		}
		q.FollowUp[tok] = target
	})
}

// ClearFollowUp removes the tok follow-up of id.
func (s *Session) ClearFollowUp(id question.ID, tok string) error {
	return s.edit(id, func(q *question.Question) {
		delete(q.FollowUp, tok)
	})
}

func (s *Session) edit(id question.ID, fn func(q *question.Question)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.snap.Get(id)
	if !ok {
		return nil
	}
	fn(q)
	next, err := s.snap.Update(q)
	if err != nil {
		return err
	}
	s.apply(next)
	return nil
}

// Save writes the current snapshot to the store.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveAll(ctx, s.snap.Questions()); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	s.dirty = false
	slog.Info("question pool saved", "questions", s.snap.Len())
	return nil
}

// apply installs next and reports any new layout warnings. Callers hold mu.
func (s *Session) apply(next *Snapshot) {
	prev := s.snap
	s.snap = next
	s.dirty = true
	if prev != nil && sameWarnings(prev.warnings, next.warnings) {
		return
	}
	for _, w := range next.warnings {
		metrics.EditWarnings.WithLabelValues(string(w.Kind)).Inc()
		if w.Kind == WarnCycle {
			slog.Warn("follow-up cycle", "question", w.QuestionID, "target", w.Target)
		} else {
			slog.Debug("layout warning", "kind", w.Kind, "question", w.QuestionID, "target", w.Target)
		}
	}
}

func sameWarnings(a, b []Warning) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
