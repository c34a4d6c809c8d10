package engine

import (
	"fmt"

	"github.com/gyaneshwarpardhi/questionflow/internal/condition"
	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/graph"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
	"github.com/gyaneshwarpardhi/questionflow/internal/router"
)

// Flow is everything a session needs to traverse the questionnaire: the
// question graph, the classification table and the multi-injection rules.
// It is immutable; edits and reloads build a new Flow and swap it in.
type Flow struct {
	Graph      *graph.Graph
	Router     *router.Table
	injections map[question.ID][]Insert
}

// Insert is one question added by a multi-injection rule. A nil When inserts
// unconditionally.
type Insert struct {
	Question question.ID
	When     condition.Expr
}

// NewFlow compiles injection conditions and assembles a Flow.
func NewFlow(g *graph.Graph, table *router.Table, injections []config.InjectionDef) (*Flow, error) {
	if table == nil {
		table = router.Empty()
	}
	f := &Flow{
		Graph:      g,
		Router:     table,
		injections: make(map[question.ID][]Insert, len(injections)),
	}
	for _, inj := range injections {
		inserts := make([]Insert, 0, len(inj.Inserts))
		for _, def := range inj.Inserts {
			ins := Insert{Question: def.Question}
			if def.When != "" {
				expr, err := condition.Parse(def.When)
				if err != nil {
					return nil, fmt.Errorf("injection %d insert %d: parse %q: %w", inj.Trigger, def.Question, def.When, err)
				}
				ins.When = expr
			}
			inserts = append(inserts, ins)
		}
		f.injections[inj.Trigger] = append(f.injections[inj.Trigger], inserts...)
	}
	return f, nil
}

// Build assembles a Flow from a question pool and the questionnaire config.
func Build(questions []*question.Question, cfg *config.Questionnaire) (*Flow, error) {
	g, err := graph.New(questions)
	if err != nil {
		return nil, err
	}
	table, err := router.New(cfg.Classification)
	if err != nil {
		return nil, err
	}
	return NewFlow(g, table, cfg.Injections)
}

// Injections returns the inserts configured for a trigger question.
func (f *Flow) Injections(trigger question.ID) []Insert {
	return f.injections[trigger]
}
