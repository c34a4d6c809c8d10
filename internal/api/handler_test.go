package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/questionflow/internal/api"
	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/engine"
	"github.com/gyaneshwarpardhi/questionflow/internal/enrich"
	"github.com/gyaneshwarpardhi/questionflow/internal/store"
)

const questionnaire = `
version: v1
engine:
  max_sessions: 5
  lookup_timeout_ms: 1000
questions:
  - id: 1
    text: Are you a healthcare provider?
    initial: true
    control_type: binary3
    risk_points: {"Yes": 5}
  - id: 2
    text: Do you accept card payments?
    initial: true
    control_type: binary3
    risk_points: {"Yes": 2}
    follow_up: {"No": 20}
  - id: 10
    text: Do you store patient records?
    control_type: binary3
    risk_points: {"Yes": 3}
  - id: 11
    text: Do you use telehealth?
    control_type: binary3
    risk_points: {"Yes": 3}
  - id: 20
    text: Which processor?
    control_type: freeText
classification:
  - question: 1
    questions: [10, 11]
lookups:
  codes:
    "5411": Grocery stores and supermarkets
`

type fixture struct {
	srv    *httptest.Server
	path   string
	eng    *engine.Engine
	store  *store.Memory
	loader *config.Loader
}

func setup(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questionnaire.yaml")
	if err := os.WriteFile(path, []byte(questionnaire), 0o600); err != nil {
		t.Fatal(err)
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := store.NewMemory(cfg.Questions)
	flow, err := engine.Build(cfg.Questions, cfg)
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New(flow, cfg.Engine)
	lookups := enrich.NewService(ctx, enrich.FromTables(cfg.Lookups), enrich.Options{
		Workers: 1, QueueDepth: 4, Timeout: cfg.Engine.LookupTimeout(),
	})
	ed, err := editor.Open(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	pub := api.NewPublisher(st, loader, eng, lookups)

	srv := httptest.NewServer(api.New(api.Deps{
		Engine: eng, Editor: ed, Lookups: lookups, Loader: loader, Publisher: pub,
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		lookups.Drain()
	})
	return &fixture{srv: srv, path: path, eng: eng, store: st, loader: loader}
}

func (f *fixture) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type snapshot struct {
	SessionID    string `json:"session_id"`
	State        string `json:"state"`
	CurrentIndex int    `json:"current_index"`
	Score        int    `json:"score"`
	Complete     bool   `json:"complete"`
	Queue        []struct {
		ID int `json:"id"`
	} `json:"queue"`
}

func (s snapshot) ids() []int {
	var out []int
	for _, q := range s.Queue {
		out = append(out, q.ID)
	}
	return out
}

type answerResp struct {
	Transition struct {
		Jumped    bool `json:"jumped"`
		Malformed bool `json:"malformed"`
	} `json:"transition"`
	Session snapshot `json:"session"`
}

func TestSessionFlow(t *testing.T) {
	f := setup(t)

	var snap snapshot
	if code := f.do(t, "POST", "/v1/sessions", "", &snap); code != http.StatusCreated {
		t.Fatalf("start: %d", code)
	}
	if got := snap.ids(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("initial queue = %v", got)
	}

	var ar answerResp
	if code := f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"Yes"`, &ar); code != http.StatusOK {
		t.Fatalf("answer: %d", code)
	}
	if !ar.Transition.Jumped || ar.Session.Score != 5 || ar.Session.CurrentIndex != 1 {
		t.Errorf("after jump: %+v", ar)
	}
	if got := ar.Session.ids(); len(got) != 3 || got[1] != 10 || got[2] != 11 {
		t.Errorf("queue = %v", got)
	}

	f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"Yes"`, &ar)
	f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"No"`, &ar)
	if !ar.Session.Complete || ar.Session.Score != 8 {
		t.Errorf("final: %+v", ar.Session)
	}

	if code := f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"Yes"`, nil); code != http.StatusConflict {
		t.Errorf("answer after complete: %d, want 409", code)
	}

	var rep struct {
		Score int `json:"score"`
		Items []struct {
			QuestionID int             `json:"question_id"`
			Answer     json.RawMessage `json:"answer"`
		} `json:"items"`
	}
	if code := f.do(t, "GET", "/v1/sessions/"+snap.SessionID+"/report", "", &rep); code != http.StatusOK {
		t.Fatalf("report: %d", code)
	}
	if rep.Score != 8 || len(rep.Items) != 3 || string(rep.Items[2].Answer) != `"No"` {
		t.Errorf("report = %+v", rep)
	}

	if code := f.do(t, "DELETE", "/v1/sessions/"+snap.SessionID, "", nil); code != http.StatusNoContent {
		t.Errorf("delete: %d", code)
	}
	if code := f.do(t, "GET", "/v1/sessions/"+snap.SessionID, "", nil); code != http.StatusNotFound {
		t.Errorf("get after delete: %d", code)
	}
}

func TestSubmitAnswer_Errors(t *testing.T) {
	f := setup(t)
	var snap snapshot
	f.do(t, "POST", "/v1/sessions", "", &snap)

	if code := f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `true`, nil); code != http.StatusBadRequest {
		t.Errorf("bool answer: %d", code)
	}
	if code := f.do(t, "POST", "/v1/sessions/unknown/answers", `"Yes"`, nil); code != http.StatusNotFound {
		t.Errorf("unknown session: %d", code)
	}

	var ar answerResp
	if code := f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `["Yes"]`, &ar); code != http.StatusOK {
		t.Fatalf("list answer: %d", code)
	}
	if !ar.Transition.Malformed || ar.Session.Score != 0 {
		t.Errorf("malformed answer scored: %+v", ar)
	}
}

func TestSessionCap(t *testing.T) {
	f := setup(t)
	for i := 0; i < 5; i++ {
		f.do(t, "POST", "/v1/sessions", "", nil)
	}
	if code := f.do(t, "POST", "/v1/sessions", "", nil); code != http.StatusTooManyRequests {
		t.Errorf("over cap: %d", code)
	}
	if code := f.do(t, "GET", "/readyz", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz at cap: %d", code)
	}
}

type treeResp struct {
	Changed bool `json:"changed"`
	Dirty   bool `json:"dirty"`
	Tree    []struct {
		ID            int    `json:"id"`
		DisplayNumber string `json:"display_number"`
		Children      []struct {
			ID            int    `json:"id"`
			DisplayNumber string `json:"display_number"`
		} `json:"children"`
	} `json:"tree"`
	Warnings []struct {
		Kind string `json:"kind"`
	} `json:"warnings"`
}

func TestEditorFlow(t *testing.T) {
	f := setup(t)

	var tr treeResp
	if code := f.do(t, "GET", "/v1/editor/tree", "", &tr); code != http.StatusOK {
		t.Fatalf("tree: %d", code)
	}
	// 2 -> 20 is the only edge: roots 1, 2, 10, 11.
	if len(tr.Tree) != 4 || tr.Tree[1].ID != 2 || tr.Tree[1].Children[0].DisplayNumber != "2.1" {
		t.Fatalf("tree = %+v", tr.Tree)
	}

	if code := f.do(t, "DELETE", "/v1/editor/questions/20", "", &tr); code != http.StatusOK || !tr.Changed || !tr.Dirty {
		t.Fatalf("delete: %d %+v", code, tr)
	}
	if code := f.do(t, "DELETE", "/v1/editor/questions/999", "", &tr); code != http.StatusOK || tr.Changed {
		t.Errorf("delete unknown: %d changed=%v", code, tr.Changed)
	}

	f.do(t, "POST", "/v1/editor/questions", `{"text":"Do you store card data?"}`, &tr)
	if len(tr.Tree) != 5 || tr.Tree[4].ID != 12 {
		t.Errorf("added: %+v", tr.Tree)
	}

	body := `{"text":"Card payments?","is_initial":true,"control_type":"binary3","risk_points":{"Yes":2},"follow_up":{"No":12}}`
	f.do(t, "PUT", "/v1/editor/questions/2", body, &tr)
	if tr.Tree[1].ID != 2 || len(tr.Tree[1].Children) != 1 || tr.Tree[1].Children[0].ID != 12 {
		t.Errorf("after update: %+v", tr.Tree)
	}
	bad := `{"text":"x","control_type":"binary3","risk_points":{"Yes":-1}}`
	if code := f.do(t, "PUT", "/v1/editor/questions/2", bad, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("invalid update: %d", code)
	}

	f.do(t, "POST", "/v1/editor/reorder", `{"dragged":11,"target":1}`, &tr)
	if tr.Tree[0].ID != 11 || tr.Tree[0].DisplayNumber != "1" {
		t.Errorf("after reorder: %+v", tr.Tree)
	}

	if code := f.do(t, "POST", "/v1/editor/save", "", nil); code != http.StatusOK {
		t.Fatalf("save: %d", code)
	}
	saved, _ := f.store.LoadAll(context.Background())
	if len(saved) != 5 || saved[0].ID != 11 {
		t.Errorf("stored pool = %d questions, first %d", len(saved), saved[0].ID)
	}

	// The published flow sends "No" on 2 to the new question 12.
	var snap snapshot
	f.do(t, "POST", "/v1/sessions", "", &snap)
	var ar answerResp
	f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"No"`, &ar)
	f.do(t, "POST", "/v1/sessions/"+snap.SessionID+"/answers", `"No"`, &ar)
	if got := ar.Session.ids(); len(got) != 3 || got[2] != 12 {
		t.Errorf("queue after publish = %v", got)
	}
}

func TestLookups(t *testing.T) {
	f := setup(t)
	var res enrich.Result
	if code := f.do(t, "POST", "/v1/lookups/codes", `{"input":"grocery"}`, &res); code != http.StatusOK {
		t.Fatalf("lookup: %d", code)
	}
	if !res.Found || res.Code != "5411" {
		t.Errorf("result = %+v", res)
	}
	if code := f.do(t, "POST", "/v1/lookups/weather", `{"input":"x"}`, nil); code != http.StatusNotFound {
		t.Errorf("unknown kind: %d", code)
	}
	if code := f.do(t, "POST", "/v1/lookups/codes", `{`, nil); code != http.StatusBadRequest {
		t.Errorf("bad json: %d", code)
	}
}

func TestFlowDescription(t *testing.T) {
	f := setup(t)
	var got struct {
		Config         string `json:"config"`
		Questions      int    `json:"questions"`
		Initial        []int  `json:"initial"`
		Classification []struct {
			Question  int   `json:"question"`
			Questions []int `json:"questions"`
		} `json:"classification"`
		LookupKinds []string `json:"lookup_kinds"`
	}
	if code := f.do(t, "GET", "/v1/flow", "", &got); code != http.StatusOK {
		t.Fatalf("flow: %d", code)
	}
	if got.Config != f.path || got.Questions != 5 {
		t.Errorf("config = %q questions = %d", got.Config, got.Questions)
	}
	if len(got.Initial) != 2 || got.Initial[0] != 1 || got.Initial[1] != 2 {
		t.Errorf("initial = %v", got.Initial)
	}
	if len(got.Classification) != 1 || got.Classification[0].Question != 1 || len(got.Classification[0].Questions) != 2 {
		t.Errorf("classification = %+v", got.Classification)
	}
	if len(got.LookupKinds) != 1 || got.LookupKinds[0] != "codes" {
		t.Errorf("lookup kinds = %v", got.LookupKinds)
	}
}

func TestConfigReload(t *testing.T) {
	f := setup(t)
	updated := strings.Replace(questionnaire, "questions: [10, 11]", "questions: [11]", 1)
	if err := os.WriteFile(f.path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}
	if code := f.do(t, "POST", "/v1/config/reload", "", nil); code != http.StatusOK {
		t.Fatalf("reload: %d", code)
	}
	ids, _ := f.eng.Flow().Router.Resolve(1)
	if len(ids) != 1 || ids[0] != 11 {
		t.Errorf("classification after reload = %v", ids)
	}

	if err := os.WriteFile(f.path, []byte("version: \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if code := f.do(t, "POST", "/v1/config/reload", "", nil); code != http.StatusUnprocessableEntity {
		t.Errorf("invalid reload: %d", code)
	}
	if f.loader.Config().Version != "v1" {
		t.Error("invalid config replaced the current one")
	}
}

func TestHealth(t *testing.T) {
	f := setup(t)
	if code := f.do(t, "GET", "/healthz", "", nil); code != http.StatusOK {
		t.Errorf("healthz: %d", code)
	}
	if code := f.do(t, "GET", "/readyz", "", nil); code != http.StatusOK {
		t.Errorf("readyz: %d", code)
	}
	if code := f.do(t, "GET", "/metrics", "", nil); code != http.StatusOK {
		t.Errorf("metrics: %d", code)
	}
}
