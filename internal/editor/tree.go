package editor

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// WarningKind classifies a problem found while laying out the question tree.
type WarningKind string

const (
	WarnCycle           WarningKind = "cycle"
	WarnMultipleParents WarningKind = "multiple_parents"
)

// Warning is a non-fatal layout problem. The editor surfaces these; numbering
// still completes.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	QuestionID question.ID `json:"question_id"`
	Target     question.ID `json:"target,omitempty"`
	Message    string      `json:"message"`
}

// Node is one entry of the hierarchical editor view.
type Node struct {
	ID            question.ID `json:"id"`
	DisplayNumber string      `json:"display_number"`
	Text          string      `json:"text"`
	Children      []*Node     `json:"children"`
}

// Forest is the numbered tree layout of a question pool. Roots are questions
// no other question points at; every other question hangs under the first
// parent that targets it in pool order.
type Forest struct {
	roots    []question.ID
	children map[question.ID][]question.ID
	numbers  map[question.ID]string
}

// BuildForest lays out questions as a numbered forest. It terminates on any
// follow-up graph: descent stops at a question already on the current path,
// and each closed cycle unreachable from a root is entered at one of its
// members, numbered as an extra top-level entry after the real roots.
func BuildForest(questions []*question.Question) (*Forest, []Warning) {
	byID := make(map[question.ID]*question.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	parent := make(map[question.ID]question.ID, len(questions))
	for _, q := range questions {
		for _, t := range edges(q) {
			if t == q.ID || byID[t] == nil {
				continue
			}
			if _, taken := parent[t]; !taken {
				parent[t] = q.ID
			}
		}
	}

	f := &Forest{
		children: make(map[question.ID][]question.ID),
		numbers:  make(map[question.ID]string, len(questions)),
	}
	for _, q := range questions {
		if p, ok := parent[q.ID]; ok {
			f.children[p] = append(f.children[p], q.ID)
		} else {
			f.roots = append(f.roots, q.ID)
		}
	}

	w := &walker{
		forest: f,
		byID:   byID,
		parent: parent,
		onPath: make(map[question.ID]bool),
	}
	for _, id := range f.roots {
		w.top(id)
	}
	for _, q := range questions {
		if _, done := f.numbers[q.ID]; done {
			continue
		}
		id := cycleEntry(q.ID, parent)
		f.roots = append(f.roots, id)
		w.top(id)
	}
	return f, w.warnings
}

// cycleEntry follows parent links up from id until one repeats and returns
// that question. Every question left unnumbered after the root walk sits on
// or below a closed cycle, so the result is a cycle member.
func cycleEntry(id question.ID, parent map[question.ID]question.ID) question.ID {
	seen := make(map[question.ID]bool)
	for !seen[id] {
		seen[id] = true
		p, ok := parent[id]
		if !ok {
			return id
		}
		id = p
	}
	return id
}

// Renumber writes DisplayNumber on every question and returns the layout
// warnings. Output depends only on the pool contents and order.
func Renumber(questions []*question.Question) []Warning {
	f, warnings := BuildForest(questions)
	for _, q := range questions {
		q.DisplayNumber = f.numbers[q.ID]
	}
	return warnings
}

// Number returns the display number assigned to id.
func (f *Forest) Number(id question.ID) string {
	return f.numbers[id]
}

// Nodes renders the forest with question text taken from byID.
func (f *Forest) Nodes(byID map[question.ID]*question.Question) []*Node {
	seen := make(map[question.ID]bool, len(f.numbers))
	var build func(id question.ID) *Node
	build = func(id question.ID) *Node {
		seen[id] = true
		n := &Node{ID: id, DisplayNumber: f.numbers[id], Children: []*Node{}}
		if q := byID[id]; q != nil {
			n.Text = q.Text
		}
		for _, c := range f.children[id] {
			if !seen[c] {
				n.Children = append(n.Children, build(c))
			}
		}
		return n
	}
	out := make([]*Node, 0, len(f.roots))
	for _, id := range f.roots {
		if !seen[id] {
			out = append(out, build(id))
		}
	}
	return out
}

type walker struct {
	forest   *Forest
	byID     map[question.ID]*question.Question
	parent   map[question.ID]question.ID
	onPath   map[question.ID]bool
	next     int
	warnings []Warning
}

func (w *walker) top(id question.ID) {
	w.next++
	w.visit(id, strconv.Itoa(w.next))
}

func (w *walker) visit(id question.ID, number string) {
	w.forest.numbers[id] = number
	w.onPath[id] = true
	defer delete(w.onPath, id)

	n := 0
	for _, c := range w.forest.children[id] {
		if w.onPath[c] {
			continue // closing edge, reported below
		}
		if _, done := w.forest.numbers[c]; done {
			continue
		}
		n++
		w.visit(c, number+"."+strconv.Itoa(n))
	}

	for _, t := range edges(w.byID[id]) {
		if w.byID[t] == nil {
			continue
		}
		switch {
		case w.onPath[t]:
			w.warn(WarnCycle, id, t, "follow-up from %d to %d closes a cycle", id, t)
		case w.parent[t] != id:
			w.warn(WarnMultipleParents, id, t, "question %d is already placed under %d", t, w.parent[t])
		}
	}
}

func (w *walker) warn(kind WarningKind, id, target question.ID, format string, args ...interface{}) {
	w.warnings = append(w.warnings, Warning{
		Kind:       kind,
		QuestionID: id,
		Target:     target,
		Message:    fmt.Sprintf(format, args...),
	})
}

// edges returns the distinct follow-up targets of q, ordered by the control
// type's token order and then by token name.
func edges(q *question.Question) []question.ID {
	if q == nil || len(q.FollowUp) == 0 {
		return nil
	}
	rank := make(map[string]int)
	for i, tok := range q.ControlType.Tokens() {
		rank[tok] = i + 1
	}
	toks := make([]string, 0, len(q.FollowUp))
	for tok := range q.FollowUp {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool {
		ri, rj := rank[toks[i]], rank[toks[j]]
		if ri == 0 {
			ri = len(rank) + 1
		}
		if rj == 0 {
			rj = len(rank) + 1
		}
		if ri != rj {
			return ri < rj
		}
		return toks[i] < toks[j]
	})
	seen := make(map[question.ID]bool, len(toks))
	out := make([]question.ID, 0, len(toks))
	for _, tok := range toks {
		t := q.FollowUp[tok]
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
