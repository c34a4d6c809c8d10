package editor

import (
	"fmt"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Snapshot is an immutable, numbered view of the full question pool. Every
// edit operation returns a new Snapshot; unknown ids return the receiver.
type Snapshot struct {
	questions []*question.Question
	byID      map[question.ID]*question.Question
	forest    *Forest
	warnings  []Warning
}

// NewSnapshot clones questions in pool order and numbers them.
func NewSnapshot(questions []*question.Question) *Snapshot {
	return build(questions)
}

// build clones the pool so numbering never touches an earlier snapshot.
func build(pool []*question.Question) *Snapshot {
	qs := question.CloneAll(pool)
	s := &Snapshot{questions: qs}
	s.index()
	s.forest, s.warnings = BuildForest(qs)
	for _, q := range qs {
		q.DisplayNumber = s.forest.Number(q.ID)
	}
	return s
}

func (s *Snapshot) index() {
	s.byID = make(map[question.ID]*question.Question, len(s.questions))
	for _, q := range s.questions {
		s.byID[q.ID] = q
	}
}

// Questions returns a copy of the pool in order.
func (s *Snapshot) Questions() []*question.Question {
	return question.CloneAll(s.questions)
}

// Get returns a copy of question id.
func (s *Snapshot) Get(id question.ID) (*question.Question, bool) {
	q, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

func (s *Snapshot) Has(id question.ID) bool {
	_, ok := s.byID[id]
	return ok
}

func (s *Snapshot) Len() int { return len(s.questions) }

// Warnings returns the layout warnings of the last renumbering.
func (s *Snapshot) Warnings() []Warning {
	return append([]Warning(nil), s.warnings...)
}

// Tree renders the hierarchical view.
func (s *Snapshot) Tree() []*Node {
	return s.forest.Nodes(s.byID)
}

// Add appends a new question with the next free id, a three-way binary
// control, no risk points and no follow-ups.
func (s *Snapshot) Add(text string) (*Snapshot, question.ID) {
	var max question.ID
	for _, q := range s.questions {
		if q.ID > max {
			max = q.ID
		}
	}
	id := max + 1
	qs := s.shallow()
	qs = append(qs, &question.Question{
		ID:          id,
		Text:        text,
		ControlType: question.ControlBinary3,
		RiskPoints:  map[string]int{},
		FollowUp:    map[string]question.ID{},
	})
	return build(qs), id
}

// Delete removes id and every follow-up edge that targets it.
func (s *Snapshot) Delete(id question.ID) *Snapshot {
	if !s.Has(id) {
		return s
	}
	qs := make([]*question.Question, 0, len(s.questions)-1)
	for _, q := range s.questions {
		if q.ID == id {
			continue
		}
		if targets(q, id) {
			q = q.Clone()
			for tok, t := range q.FollowUp {
				if t == id {
					delete(q.FollowUp, tok)
				}
			}
		}
		qs = append(qs, q)
	}
	return build(qs)
}

// Reorder moves dragged to the position immediately before target. Follow-up
// edges are untouched; only sibling order changes.
func (s *Snapshot) Reorder(dragged, target question.ID) *Snapshot {
	if dragged == target || !s.Has(dragged) || !s.Has(target) {
		return s
	}
	qs := make([]*question.Question, 0, len(s.questions))
	moved := s.byID[dragged]
	for _, q := range s.questions {
		switch q.ID {
		case dragged:
			continue
		case target:
			qs = append(qs, moved)
		}
		qs = append(qs, q)
	}
	return build(qs)
}

// Update replaces the question with q.ID in place. The layout is recomputed
// only when the follow-up edges changed. Invalid questions are rejected and
// the receiver is unchanged.
func (s *Snapshot) Update(q *question.Question) (*Snapshot, error) {
	old, ok := s.byID[q.ID]
	if !ok {
		return s, nil
	}
	if err := q.Validate(); err != nil {
		return s, fmt.Errorf("update question %d: %w", q.ID, err)
	}
	next := q.Clone()
	qs := s.shallow()
	for i, cur := range qs {
		if cur.ID == q.ID {
			qs[i] = next
			break
		}
	}
	if !question.SameFollowUps(old, next) {
		return build(qs), nil
	}
	next.DisplayNumber = old.DisplayNumber
	out := &Snapshot{questions: qs, forest: s.forest, warnings: s.warnings}
	out.index()
	return out, nil
}

// shallow copies the pool slice. Question values are shared; callers clone
// any question they modify.
func (s *Snapshot) shallow() []*question.Question {
	return append([]*question.Question(nil), s.questions...)
}

func targets(q *question.Question, id question.ID) bool {
	for _, t := range q.FollowUp {
		if t == id {
			return true
		}
	}
	return false
}
