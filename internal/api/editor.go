package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

type treeResponse struct {
	Changed  bool               `json:"changed"`
	Tree     []*editor.Node     `json:"tree"`
	Warnings []editor.Warning   `json:"warnings"`
	Dirty    bool               `json:"dirty"`
	Selected *question.Question `json:"selected,omitempty"`
}

func (h *Handler) writeTree(w http.ResponseWriter, status int, changed bool) {
	resp := treeResponse{
		Changed:  changed,
		Tree:     h.editor.Tree(),
		Warnings: h.editor.Warnings(),
		Dirty:    h.editor.Dirty(),
	}
	if resp.Warnings == nil {
		resp.Warnings = []editor.Warning{}
	}
	if q, ok := h.editor.Selected(); ok {
		resp.Selected = q
	}
	writeJSON(w, status, resp)
}

// GET /v1/editor/tree
func (h *Handler) editorTree(w http.ResponseWriter, r *http.Request) {
	h.writeTree(w, http.StatusOK, false)
}

type addRequest struct {
	Text string `json:"text"`
}

// POST /v1/editor/questions — add a question with a fresh id.
func (h *Handler) addQuestion(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	h.editor.Add(req.Text)
	h.writeTree(w, http.StatusCreated, true)
}

// PUT /v1/editor/questions/{id} — replace a question. The path id wins over
// any id in the body.
func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	var q question.Question
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	q.ID = id
	before := h.editor.Snapshot()
	if err := h.editor.Update(&q); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.writeTree(w, http.StatusOK, h.editor.Snapshot() != before)
}

// DELETE /v1/editor/questions/{id} — delete with follow-up cascade.
func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	h.writeTree(w, http.StatusOK, h.editor.Delete(id))
}

type reorderRequest struct {
	Dragged question.ID `json:"dragged"`
	Target  question.ID `json:"target"`
}

// POST /v1/editor/reorder — move dragged before target.
func (h *Handler) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	h.writeTree(w, http.StatusOK, h.editor.Reorder(req.Dragged, req.Target))
}

// POST /v1/editor/select/{id}
func (h *Handler) selectQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return
	}
	h.writeTree(w, http.StatusOK, h.editor.Select(id))
}

// POST /v1/editor/save — persist the snapshot and publish a new flow.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.Save(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.pub.Publish(r.Context()); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved":     true,
		"questions": h.editor.Snapshot().Len(),
	})
}
