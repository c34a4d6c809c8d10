package engine

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gyaneshwarpardhi/questionflow/internal/condition"
	"github.com/gyaneshwarpardhi/questionflow/internal/metrics"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// ErrSessionComplete is returned when an answer is submitted to a session
// that has already finished. The session is left untouched.
var ErrSessionComplete = errors.New("session is complete")

// State is the session state machine's state.
type State string

const (
	StateRunning  State = "running"
	StateComplete State = "complete"
)

// Reason tells why a question entered the queue after the session started.
type Reason string

const (
	ReasonFollowUp  Reason = "follow_up"
	ReasonJump      Reason = "jump"
	ReasonInjection Reason = "injection"
)

// Insertion records one question added to the queue by a transition.
type Insertion struct {
	QuestionID question.ID `json:"question_id"`
	Reason     Reason      `json:"reason"`
	Position   int         `json:"position"`
}

// Transition describes what a single Submit did.
type Transition struct {
	QuestionID question.ID `json:"question_id"`
	Scored     int         `json:"scored"`
	Malformed  bool        `json:"malformed,omitempty"` // shape did not fit the control type
	Jumped     bool        `json:"jumped,omitempty"`
	Inserted   []Insertion `json:"inserted,omitempty"`
	Completed  bool        `json:"completed"`
}

// Session is one respondent's run through a Flow. It is not safe for
// concurrent use.
type Session struct {
	id        string
	flow      *Flow
	queue     []question.ID
	queued    map[question.ID]bool
	current   int
	score     int
	answers   map[question.ID]question.Answer
	complete  bool
	startedAt time.Time
	updatedAt time.Time
	log       *slog.Logger
}

// NewSession starts a session on flow with the flow's initial questions
// queued. An empty pool yields a session that is already complete.
func NewSession(id string, flow *Flow) *Session {
	now := time.Now()
	s := &Session{
		id:        id,
		flow:      flow,
		queued:    make(map[question.ID]bool),
		answers:   make(map[question.ID]question.Answer),
		startedAt: now,
		updatedAt: now,
		log:       slog.Default().With("session", id),
	}
	for _, q := range flow.Graph.Initial() {
		s.queue = append(s.queue, q.ID)
		s.queued[q.ID] = true
	}
	s.complete = len(s.queue) == 0
	return s
}

func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	if s.complete {
		return StateComplete
	}
	return StateRunning
}

func (s *Session) Score() int           { return s.score }
func (s *Session) CurrentIndex() int    { return s.current }
func (s *Session) Complete() bool       { return s.complete }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// Queue returns a copy of the queued question ids.
func (s *Session) Queue() []question.ID {
	return append([]question.ID(nil), s.queue...)
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (*question.Question, bool) {
	if s.complete {
		return nil, false
	}
	return s.flow.Graph.Get(s.queue[s.current])
}

// Answer returns the answer recorded for id.
func (s *Session) Answer(id question.ID) (question.Answer, bool) {
	a, ok := s.answers[id]
	return a, ok
}

// Submit answers the current question and runs the queue-mutation rules:
// scoring, the classification jump, the standard follow-up and the
// multi-injection rules, then advances.
func (s *Session) Submit(ans question.Answer) (Transition, error) {
	if s.complete {
		return Transition{}, ErrSessionComplete
	}
	q, _ := s.flow.Graph.Get(s.queue[s.current])
	s.updatedAt = time.Now()

	tr := Transition{QuestionID: q.ID}
	s.answers[q.ID] = ans

	tok, isToken := "", false
	if q.ControlType.IsBinary() {
		tok, isToken = ans.Token(q.ControlType)
	}
	status := "ok"
	if !ans.Fits(q.ControlType) {
		tr.Malformed = true
		status = "malformed"
		s.log.Debug("answer shape does not fit control type",
			"question", q.ID, "control_type", q.ControlType, "shape", ans.Shape())
	}
	metrics.AnswersSubmitted.WithLabelValues(string(q.ControlType), status).Inc()

	if isToken {
		tr.Scored = q.Points(tok)
		s.score += tr.Scored
	}

	if q.IsInitial && isToken && tok == question.Yes {
		s.jump(q, &tr)
		s.finish(&tr)
		return tr, nil
	}

	// A malformed answer is recorded but never branches.
	if !tr.Malformed {
		cursor := s.current + 1
		if isToken {
			if target, ok := s.flow.Graph.FollowUpTarget(q, tok); ok {
				cursor = s.insert(cursor, target.ID, ReasonFollowUp, &tr)
			} else if id, ok := q.FollowUpFor(tok); ok {
				s.drop(id, ReasonFollowUp)
			}
		}
		s.inject(q, ans, cursor, &tr)
	}

	s.advance(&tr)
	s.finish(&tr)
	return tr, nil
}

// jump replaces everything after the current question with the classification
// list for q. A missing or unresolvable list completes the session.
func (s *Session) jump(q *question.Question, tr *Transition) {
	tr.Jumped = true
	ids, ok := s.flow.Router.Resolve(q.ID)
	if !ok || len(ids) == 0 {
		s.log.Debug("no classification entry, completing", "question", q.ID)
		s.complete = true
		tr.Completed = true
		return
	}

	s.queue = s.queue[:s.current+1]
	s.queued = make(map[question.ID]bool, len(s.queue)+len(ids))
	for _, id := range s.queue {
		s.queued[id] = true
	}
	pos := s.current + 1
	for _, id := range ids {
		pos = s.insert(pos, id, ReasonJump, tr)
	}
	s.advance(tr)
}

// inject runs the multi-injection rules for q. Each matching insert lands at
// the cursor, so configured order is preserved.
func (s *Session) inject(q *question.Question, ans question.Answer, cursor int, tr *Transition) int {
	inserts := s.flow.Injections(q.ID)
	if len(inserts) == 0 {
		return cursor
	}
	env := &answerEnv{answer: ans, answers: s.answers, score: s.score}
	for _, ins := range inserts {
		if ins.When != nil {
			ok, err := condition.Evaluate(ins.When, env)
			if err != nil {
				s.log.Debug("injection condition not evaluable, skipping",
					"trigger", q.ID, "question", ins.Question, "err", err)
				continue
			}
			if !ok {
				continue
			}
		}
		cursor = s.insert(cursor, ins.Question, ReasonInjection, tr)
	}
	return cursor
}

// insert splices id into the queue at pos unless it is already queued or
// missing from the graph. It returns the next insertion position.
func (s *Session) insert(pos int, id question.ID, reason Reason, tr *Transition) int {
	if !s.flow.Graph.Has(id) {
		s.drop(id, reason)
		return pos
	}
	if s.queued[id] {
		return pos
	}
	s.queue = append(s.queue, 0)
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = id
	s.queued[id] = true
	tr.Inserted = append(tr.Inserted, Insertion{QuestionID: id, Reason: reason, Position: pos})
	metrics.QuestionsInjected.WithLabelValues(string(reason)).Inc()
	return pos + 1
}

func (s *Session) drop(id question.ID, reason Reason) {
	metrics.ReferencesDropped.Inc()
	s.log.Debug("dropping reference to missing question", "question", id, "reason", reason)
}

func (s *Session) advance(tr *Transition) {
	if s.current+1 < len(s.queue) {
		s.current++
		return
	}
	s.complete = true
	tr.Completed = true
}

func (s *Session) finish(tr *Transition) {
	if tr.Completed {
		metrics.SessionsCompleted.Inc()
		metrics.FinalScore.Observe(float64(s.score))
		s.log.Info("session complete", "score", s.score, "answered", len(s.answers))
	}
}

// answerEnv exposes the submitted answer, earlier answers and the running
// score to injection conditions.
type answerEnv struct {
	answer  question.Answer
	answers map[question.ID]question.Answer
	score   int
}

func (e *answerEnv) Resolve(path []string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	switch path[0] {
	case "answer":
		return resolveAnswer(e.answer, path[1:])
	case "answers":
		if len(path) < 2 {
			return nil, false
		}
		n, err := strconv.Atoi(path[1])
		if err != nil {
			return nil, false
		}
		a, ok := e.answers[question.ID(n)]
		if !ok {
			return nil, false
		}
		return resolveAnswer(a, path[2:])
	case "score":
		if len(path) == 1 {
			return e.score, true
		}
	}
	return nil, false
}

func resolveAnswer(a question.Answer, rest []string) (interface{}, bool) {
	if len(rest) == 0 {
		return a.Value(), !a.IsZero()
	}
	fields, ok := a.Fields()
	if !ok || len(rest) != 1 {
		return nil, false
	}
	v, ok := fields[rest[0]]
	return v, ok
}
