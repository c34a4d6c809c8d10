package editor_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

func bq(id question.ID, follow map[string]question.ID) *question.Question {
	return &question.Question{
		ID:          id,
		Text:        "question",
		ControlType: question.ControlBinary3,
		RiskPoints:  map[string]int{},
		FollowUp:    follow,
	}
}

func numbers(s *editor.Snapshot) map[question.ID]string {
	out := make(map[question.ID]string)
	for _, q := range s.Questions() {
		out[q.ID] = q.DisplayNumber
	}
	return out
}

func kinds(ws []editor.Warning) []editor.WarningKind {
	var out []editor.WarningKind
	for _, w := range ws {
		out = append(out, w.Kind)
	}
	return out
}

func TestRenumber_Forest(t *testing.T) {
	pool := []*question.Question{
		bq(1, map[string]question.ID{question.Yes: 3, question.No: 4}),
		bq(2, nil),
		bq(3, map[string]question.ID{question.Yes: 5}),
		bq(4, nil),
		bq(5, nil),
	}
	s := editor.NewSnapshot(pool)
	want := map[question.ID]string{1: "1", 2: "2", 3: "1.1", 4: "1.2", 5: "1.1.1"}
	if got := numbers(s); !reflect.DeepEqual(got, want) {
		t.Fatalf("numbers = %v, want %v", got, want)
	}
	if len(s.Warnings()) != 0 {
		t.Errorf("unexpected warnings %+v", s.Warnings())
	}

	tree := s.Tree()
	if len(tree) != 2 || tree[0].ID != 1 || len(tree[0].Children) != 2 || tree[0].Children[0].Children[0].ID != 5 {
		t.Errorf("tree shape wrong: %+v", tree)
	}
}

func TestRenumber_Deterministic(t *testing.T) {
	pool := []*question.Question{
		bq(4, map[string]question.ID{question.No: 2, question.NA: 9}),
		bq(2, map[string]question.ID{question.Yes: 4}),
		bq(7, map[string]question.ID{question.Yes: 7}),
		bq(9, nil),
	}
	first := editor.NewSnapshot(pool)
	second := editor.NewSnapshot(first.Questions())
	if !reflect.DeepEqual(numbers(first), numbers(second)) {
		t.Errorf("renumbering differs: %v vs %v", numbers(first), numbers(second))
	}
	if !reflect.DeepEqual(first.Warnings(), second.Warnings()) {
		t.Errorf("warnings differ")
	}
}

func TestRenumber_Cycles(t *testing.T) {
	tests := []struct {
		name    string
		pool    []*question.Question
		want    map[question.ID]string
		warning []editor.WarningKind
	}{
		{
			name: "self edge",
			pool: []*question.Question{bq(1, map[string]question.ID{question.Yes: 1})},
			want: map[question.ID]string{1: "1"},
			warning: []editor.WarningKind{editor.WarnCycle},
		},
		{
			name: "back edge below a root",
			pool: []*question.Question{
				bq(1, map[string]question.ID{question.Yes: 2}),
				bq(2, map[string]question.ID{question.Yes: 3}),
				bq(3, map[string]question.ID{question.Yes: 2}),
			},
			want:    map[question.ID]string{1: "1", 2: "1.1", 3: "1.1.1"},
			warning: []editor.WarningKind{editor.WarnCycle},
		},
		{
			name: "closed cycle with no root",
			pool: []*question.Question{
				bq(5, nil),
				bq(6, map[string]question.ID{question.Yes: 7}),
				bq(7, map[string]question.ID{question.No: 6}),
			},
			want:    map[question.ID]string{5: "1", 6: "2", 7: "2.1"},
			warning: []editor.WarningKind{editor.WarnCycle},
		},
		{
			name: "closed cycle listed after its tail",
			pool: []*question.Question{
				bq(3, nil),
				bq(1, map[string]question.ID{question.Yes: 2}),
				bq(2, map[string]question.ID{question.Yes: 1, question.No: 3}),
			},
			want:    map[question.ID]string{2: "1", 3: "1.1", 1: "1.2"},
			warning: []editor.WarningKind{editor.WarnCycle},
		},
		{
			name: "diamond",
			pool: []*question.Question{
				bq(1, map[string]question.ID{question.Yes: 2, question.No: 3}),
				bq(2, map[string]question.ID{question.Yes: 4}),
				bq(3, map[string]question.ID{question.Yes: 4}),
				bq(4, nil),
			},
			want:    map[question.ID]string{1: "1", 2: "1.1", 3: "1.2", 4: "1.1.1"},
			warning: []editor.WarningKind{editor.WarnMultipleParents},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := editor.NewSnapshot(tc.pool)
			if got := numbers(s); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("numbers = %v, want %v", got, tc.want)
			}
			if got := kinds(s.Warnings()); !reflect.DeepEqual(got, tc.warning) {
				t.Errorf("warnings = %v, want %v", got, tc.warning)
			}
		})
	}
}

func TestRenumber_CycleTailStaysUnderParent(t *testing.T) {
	s := editor.NewSnapshot([]*question.Question{
		bq(3, nil),
		bq(1, map[string]question.ID{question.Yes: 2}),
		bq(2, map[string]question.ID{question.Yes: 1, question.No: 3}),
	})
	tree := s.Tree()
	if len(tree) != 1 || tree[0].ID != 2 {
		t.Fatalf("top level = %+v, want only question 2", tree)
	}
	kids := tree[0].Children
	if len(kids) != 2 || kids[0].ID != 3 || kids[1].ID != 1 {
		t.Errorf("children of 2 = %+v", kids)
	}
}

func TestAdd(t *testing.T) {
	s := editor.NewSnapshot(nil)
	s, id := s.Add("first")
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}
	s = editor.NewSnapshot([]*question.Question{bq(3, nil), bq(8, nil)})
	s, id = s.Add("next")
	if id != 9 || s.Len() != 3 {
		t.Fatalf("id = %d len = %d", id, s.Len())
	}
	q, _ := s.Get(id)
	if q.ControlType != question.ControlBinary3 || q.IsInitial || len(q.FollowUp) != 0 || q.DisplayNumber != "3" {
		t.Errorf("added question = %+v", q)
	}

	// The id of a deleted highest question is handed out again.
	s = s.Delete(9)
	if _, id = s.Add("again"); id != 9 {
		t.Errorf("id after deleting 9 = %d, want 9", id)
	}
}

func TestDelete_Cascades(t *testing.T) {
	s := editor.NewSnapshot([]*question.Question{
		bq(2, map[string]question.ID{question.Yes: 20, question.No: 21}),
		bq(20, nil),
		bq(21, map[string]question.ID{question.NA: 20}),
	})
	next := s.Delete(20)
	if next.Has(20) {
		t.Fatal("question 20 still present")
	}
	for _, q := range next.Questions() {
		for tok, target := range q.FollowUp {
			if target == 20 {
				t.Errorf("question %d still follows %s -> 20", q.ID, tok)
			}
		}
	}
	q2, _ := next.Get(2)
	if _, ok := q2.FollowUp[question.Yes]; ok {
		t.Error("followUp.Yes survived delete")
	}
	if q2.FollowUp[question.No] != 21 {
		t.Error("unrelated follow-up removed")
	}
	if orig, _ := s.Get(2); orig.FollowUp[question.Yes] != 20 {
		t.Error("delete mutated the previous snapshot")
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	s := editor.NewSnapshot([]*question.Question{bq(1, nil), bq(2, nil)})
	if s.Delete(99) != s {
		t.Error("delete of unknown id changed snapshot")
	}
	if s.Reorder(99, 1) != s || s.Reorder(1, 99) != s || s.Reorder(1, 1) != s {
		t.Error("reorder with unknown id changed snapshot")
	}
	if next, err := s.Update(bq(99, nil)); err != nil || next != s {
		t.Errorf("update of unknown id: %v", err)
	}
}

func TestReorder_ChangesSiblingOrder(t *testing.T) {
	s := editor.NewSnapshot([]*question.Question{
		bq(1, map[string]question.ID{question.Yes: 2, question.No: 3}),
		bq(2, nil),
		bq(3, nil),
		bq(4, nil),
	})
	next := s.Reorder(3, 2)
	want := map[question.ID]string{1: "1", 3: "1.1", 2: "1.2", 4: "2"}
	if got := numbers(next); !reflect.DeepEqual(got, want) {
		t.Errorf("numbers = %v, want %v", got, want)
	}
	next = next.Reorder(4, 1)
	if got := numbers(next)[4]; got != "1" {
		t.Errorf("root moved first: number = %s", got)
	}
	q1, _ := next.Get(1)
	if q1.FollowUp[question.Yes] != 2 || q1.FollowUp[question.No] != 3 {
		t.Error("reorder altered follow-up edges")
	}
}

func TestUpdate(t *testing.T) {
	s := editor.NewSnapshot([]*question.Question{bq(1, nil), bq(2, nil)})

	q, _ := s.Get(2)
	q.Text = "renamed"
	next, err := s.Update(q)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := next.Get(2); got.Text != "renamed" || got.DisplayNumber != "2" {
		t.Errorf("updated = %+v", got)
	}

	q, _ = next.Get(1)
	q.FollowUp = map[string]question.ID{question.Yes: 2}
	next, err = next.Update(q)
	if err != nil {
		t.Fatal(err)
	}
	if got := numbers(next)[2]; got != "1.1" {
		t.Errorf("edge change not renumbered: %s", got)
	}

	bad, _ := next.Get(1)
	bad.RiskPoints = map[string]int{question.Yes: -3}
	if same, err := next.Update(bad); err == nil || same != next {
		t.Error("negative risk points accepted")
	}
}

type memStore struct {
	qs    []*question.Question
	saves int
}

func (m *memStore) LoadAll(context.Context) ([]*question.Question, error) {
	return question.CloneAll(m.qs), nil
}

func (m *memStore) SaveAll(_ context.Context, qs []*question.Question) error {
	m.qs = question.CloneAll(qs)
	m.saves++
	return nil
}

func TestSession_DeleteCascadesAndRenumbers(t *testing.T) {
	store := &memStore{qs: []*question.Question{
		bq(2, map[string]question.ID{question.Yes: 20}),
		bq(20, nil),
	}}
	ctx := context.Background()
	s, err := editor.Open(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if s.Dirty() {
		t.Error("fresh session should be clean")
	}
	if !s.Select(20) {
		t.Fatal("select failed")
	}
	if !s.Delete(20) {
		t.Fatal("delete reported no change")
	}
	if _, ok := s.Selected(); ok {
		t.Error("deleted question still selected")
	}
	if !s.Dirty() {
		t.Error("edit should mark session dirty")
	}
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Dirty() || store.saves != 1 {
		t.Errorf("dirty=%v saves=%d", s.Dirty(), store.saves)
	}
	if len(store.qs) != 1 {
		t.Fatalf("stored %d questions", len(store.qs))
	}
	if _, ok := store.qs[0].FollowUp[question.Yes]; ok {
		t.Error("question 2 still has followUp.Yes after save")
	}
}

func TestSession_FollowUpEdits(t *testing.T) {
	s, err := editor.Open(context.Background(), &memStore{qs: []*question.Question{bq(1, nil), bq(2, nil)}})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetFollowUp(1, question.No, 2); err != nil {
		t.Fatal(err)
	}
	if tree := s.Tree(); len(tree) != 1 || len(tree[0].Children) != 1 {
		t.Errorf("tree = %+v", tree)
	}
	if err := s.SetFollowUp(1, "Maybe", 2); err == nil {
		t.Error("illegal token accepted")
	}
	if err := s.SetFollowUp(2, question.Yes, 1); err != nil {
		t.Fatal(err)
	}
	if got := kinds(s.Warnings()); !reflect.DeepEqual(got, []editor.WarningKind{editor.WarnCycle}) {
		t.Errorf("warnings = %v", got)
	}
	if err := s.ClearFollowUp(1, question.No); err != nil {
		t.Fatal(err)
	}
	if len(s.Tree()) != 1 || s.Tree()[0].ID != 2 {
		t.Errorf("tree after clear = %+v", s.Tree())
	}
	if s.Select(42) {
		t.Error("selected unknown id")
	}
	if id := s.Add("new"); id != 3 {
		t.Errorf("added id = %d", id)
	}
	if q, ok := s.Selected(); !ok || q.ID != 3 {
		t.Error("added question not selected")
	}
}
