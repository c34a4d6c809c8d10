package engine

import (
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

// QueueItem is a queued question as the presentation layer sees it.
type QueueItem struct {
	ID          question.ID          `json:"id"`
	Text        string               `json:"text"`
	ControlType question.ControlType `json:"control_type"`
	Answered    bool                 `json:"answered"`
}

// Snapshot is the state handed to the presentation layer after each transition.
type Snapshot struct {
	SessionID    string             `json:"session_id"`
	State        State              `json:"state"`
	Queue        []QueueItem        `json:"queue"`
	CurrentIndex int                `json:"current_index"`
	Current      *question.Question `json:"current,omitempty"`
	Score        int                `json:"score"`
	Complete     bool               `json:"complete"`
}

// Snapshot renders the session for the presentation layer.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:    s.id,
		State:        s.State(),
		Queue:        make([]QueueItem, 0, len(s.queue)),
		CurrentIndex: s.current,
		Score:        s.score,
		Complete:     s.complete,
	}
	for _, id := range s.queue {
		q, ok := s.flow.Graph.Get(id)
		if !ok {
			continue
		}
		_, answered := s.answers[id]
		snap.Queue = append(snap.Queue, QueueItem{
			ID:          q.ID,
			Text:        q.Text,
			ControlType: q.ControlType,
			Answered:    answered,
		})
	}
	if q, ok := s.Current(); ok {
		snap.Current = q.Clone()
	}
	return snap
}

// ReportItem is one answered question in queue order.
type ReportItem struct {
	QuestionID   question.ID     `json:"question_id"`
	QuestionText string          `json:"question_text"`
	Answer       question.Answer `json:"answer"`
}

// Report is what the report/export collaborator consumes.
type Report struct {
	SessionID string       `json:"session_id"`
	Score     int          `json:"score"`
	Complete  bool         `json:"complete"`
	Items     []ReportItem `json:"items"`
}

// Report lists answered questions in queue order with the final score.
func (s *Session) Report() Report {
	r := Report{SessionID: s.id, Score: s.score, Complete: s.complete, Items: []ReportItem{}}
	for _, id := range s.queue {
		a, ok := s.answers[id]
		if !ok {
			continue
		}
		q, _ := s.flow.Graph.Get(id)
		r.Items = append(r.Items, ReportItem{QuestionID: id, QuestionText: q.Text, Answer: a})
	}
	return r
}
