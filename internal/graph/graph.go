// Package graph holds the in-memory question pool and its follow-up edges.
package graph

import (
	"fmt"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Graph holds questions in pool order plus an id index.
// It is immutable once built; edits produce a new snapshot and a new Graph.
type Graph struct {
	ordered []*question.Question
	byID    map[question.ID]*question.Question
}

// New builds a Graph from questions in pool order. The questions are cloned.
// Duplicate ids are the only construction error; dangling follow-up targets
// are kept and ignored at traversal time.
func New(questions []*question.Question) (*Graph, error) {
	g := &Graph{
		ordered: make([]*question.Question, 0, len(questions)),
		byID:    make(map[question.ID]*question.Question, len(questions)),
	}
	for i, q := range questions {
		if q == nil {
			return nil, fmt.Errorf("graph: nil question at position %d", i)
		}
		if _, dup := g.byID[q.ID]; dup {
			return nil, fmt.Errorf("graph: duplicate question id %d", q.ID)
		}
		c := q.Clone()
		g.ordered = append(g.ordered, c)
		g.byID[c.ID] = c
	}
	return g, nil
}

// Get returns a question by id.
func (g *Graph) Get(id question.ID) (*question.Question, bool) {
	q, ok := g.byID[id]
	return q, ok
}

// Has reports whether id names a question in the pool.
func (g *Graph) Has(id question.ID) bool {
	_, ok := g.byID[id]
	return ok
}

// All returns the questions in persisted pool order.
func (g *Graph) All() []*question.Question {
	return g.ordered
}

// ByID returns the id index. Callers must not modify it.
func (g *Graph) ByID() map[question.ID]*question.Question {
	return g.byID
}

// Len returns the pool size.
func (g *Graph) Len() int {
	return len(g.ordered)
}

// Initial returns the start set: every question marked initial, or the first
// pool question when none is marked. An empty pool yields nil.
func (g *Graph) Initial() []*question.Question {
	var out []*question.Question
	for _, q := range g.ordered {
		if q.IsInitial {
			out = append(out, q)
		}
	}
	if len(out) == 0 && len(g.ordered) > 0 {
		out = append(out, g.ordered[0])
	}
	return out
}

// FollowUpTarget resolves the follow-up edge of q for tok. A target missing
// from the pool is reported as absent.
func (g *Graph) FollowUpTarget(q *question.Question, tok string) (*question.Question, bool) {
	id, ok := q.FollowUpFor(tok)
	if !ok {
		return nil, false
	}
	return g.Get(id)
}
