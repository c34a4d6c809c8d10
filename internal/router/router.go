// Package router maps initial classification questions to the ordered list of
// questions that replaces the rest of the queue on a "Yes" answer.
package router

import (
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// Route is one configured classification entry.
type Route struct {
	Question  question.ID   `yaml:"question" json:"question"`
	Questions []question.ID `yaml:"questions" json:"questions"`
}

// Table is an immutable classification table. Lists may share members and
// keep their configured order; dedup happens when the engine inserts.
type Table struct {
	routes map[question.ID][]question.ID
}

// New builds a Table. A classification question may appear only once.
func New(routes []Route) (*Table, error) {
	t := &Table{routes: make(map[question.ID][]question.ID, len(routes))}
	for _, r := range routes {
		if _, dup := t.routes[r.Question]; dup {
			return nil, fmt.Errorf("router: duplicate classification entry for question %d", r.Question)
		}
		t.routes[r.Question] = append([]question.ID(nil), r.Questions...)
	}
	return t, nil
}

// Empty returns a table with no routes.
func Empty() *Table {
	return &Table{routes: map[question.ID][]question.ID{}}
}

// Resolve returns a copy of the list configured for id.
func (t *Table) Resolve(id question.ID) ([]question.ID, bool) {
	if t == nil {
		return nil, false
	}
	ids, ok := t.routes[id]
	if !ok {
		return nil, false
	}
	return append([]question.ID(nil), ids...), true
}

// Len returns the number of classification entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}

// Routes returns the table as a list sorted by classification question id.
func (t *Table) Routes() []Route {
	if t == nil {
		return nil
	}
	out := make([]Route, 0, len(t.routes))
	for id, ids := range t.routes {
		out = append(out, Route{Question: id, Questions: append([]question.ID(nil), ids...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Question < out[j].Question })
	return out
}
