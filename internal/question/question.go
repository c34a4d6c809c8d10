package question

import "fmt"

// ID is the stable identity of a question. It is assigned once and never reused
// as a display label.
type ID int

// ControlType is the closed set of answer shapes a question can expect.
type ControlType string

const (
	ControlBinary3       ControlType = "binary3" // Yes / No / N/A
	ControlBinary2       ControlType = "binary2" // Yes / No
	ControlFreeText      ControlType = "freeText"
	ControlNumeric       ControlType = "numeric"
	ControlMultiSelect   ControlType = "multiSelect"
	ControlTagList       ControlType = "tagList"
	ControlCompositeForm ControlType = "compositeForm"
)

// Answer tokens accepted by binary control types.
const (
	Yes = "Yes"
	No  = "No"
	NA  = "N/A"
)

// Valid reports whether c is one of the known control types.
func (c ControlType) Valid() bool {
	switch c {
	case ControlBinary3, ControlBinary2, ControlFreeText, ControlNumeric,
		ControlMultiSelect, ControlTagList, ControlCompositeForm:
		return true
	}
	return false
}

// IsBinary reports whether answers to c can drive risk points and follow-ups.
func (c ControlType) IsBinary() bool {
	return c == ControlBinary3 || c == ControlBinary2
}

// Tokens returns the legal answer tokens for a binary control type, nil otherwise.
func (c ControlType) Tokens() []string {
	switch c {
	case ControlBinary3:
		return []string{Yes, No, NA}
	case ControlBinary2:
		return []string{Yes, No}
	}
	return nil
}

// AcceptsToken reports whether tok is a legal answer token for c.
func (c ControlType) AcceptsToken(tok string) bool {
	for _, t := range c.Tokens() {
		if t == tok {
			return true
		}
	}
	return false
}

// Question is a node in the question graph.
type Question struct {
	ID            ID             `json:"id" yaml:"id"`
	DisplayNumber string         `json:"display_number,omitempty" yaml:"-"` // derived by renumbering
	Text          string         `json:"text" yaml:"text"`
	IsInitial     bool           `json:"is_initial" yaml:"initial"`
	ControlType   ControlType    `json:"control_type" yaml:"control_type"`
	RiskPoints    map[string]int `json:"risk_points,omitempty" yaml:"risk_points"` // token -> points
	FollowUp      map[string]ID  `json:"follow_up,omitempty" yaml:"follow_up"`     // token -> target
}

// Points returns the risk contribution of tok, zero when unconfigured.
func (q *Question) Points(tok string) int {
	return q.RiskPoints[tok]
}

// FollowUpFor returns the follow-up target configured for tok.
func (q *Question) FollowUpFor(tok string) (ID, bool) {
	id, ok := q.FollowUp[tok]
	return id, ok
}

// Clone returns a deep copy so snapshots never share maps.
func (q *Question) Clone() *Question {
	c := *q
	if q.RiskPoints != nil {
		c.RiskPoints = make(map[string]int, len(q.RiskPoints))
		for k, v := range q.RiskPoints {
			c.RiskPoints[k] = v
		}
	}
	if q.FollowUp != nil {
		c.FollowUp = make(map[string]ID, len(q.FollowUp))
		for k, v := range q.FollowUp {
			c.FollowUp[k] = v
		}
	}
	return &c
}

// SameFollowUps reports whether a and b carry an identical follow-up edge set.
func SameFollowUps(a, b *Question) bool {
	if len(a.FollowUp) != len(b.FollowUp) {
		return false
	}
	for k, v := range a.FollowUp {
		if w, ok := b.FollowUp[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// Validate checks the shape of a single question. Follow-up targets are not
// checked here: dangling references are tolerated by design of the graph.
func (q *Question) Validate() error {
	if q.ID <= 0 {
		return fmt.Errorf("question id must be positive, got %d", q.ID)
	}
	if !q.ControlType.Valid() {
		return fmt.Errorf("question %d: unknown control type %q", q.ID, q.ControlType)
	}
	for tok, pts := range q.RiskPoints {
		if pts < 0 {
			return fmt.Errorf("question %d: risk points for %q must be non-negative, got %d", q.ID, tok, pts)
		}
		if pts != 0 && !q.ControlType.AcceptsToken(tok) {
			return fmt.Errorf("question %d: risk points on %q not allowed for control type %s", q.ID, tok, q.ControlType)
		}
	}
	for tok := range q.FollowUp {
		if !q.ControlType.AcceptsToken(tok) {
			return fmt.Errorf("question %d: follow-up on %q not allowed for control type %s", q.ID, tok, q.ControlType)
		}
	}
	return nil
}

// CloneAll deep-copies a slice of questions, preserving order.
func CloneAll(qs []*Question) []*Question {
	out := make([]*Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
