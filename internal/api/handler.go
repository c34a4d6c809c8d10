package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/questionflow/internal/config"
	"github.com/gyaneshwarpardhi/questionflow/internal/editor"
	"github.com/gyaneshwarpardhi/questionflow/internal/engine"
	"github.com/gyaneshwarpardhi/questionflow/internal/enrich"
	"github.com/gyaneshwarpardhi/questionflow/internal/question"
)

const maxBodyBytes = 1 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng     *engine.Engine
	editor  *editor.Session
	lookups *enrich.Service
	loader  *config.Loader
	pub     *Publisher
	mux     *http.ServeMux
}

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Engine    *engine.Engine
	Editor    *editor.Session
	Lookups   *enrich.Service
	Loader    *config.Loader
	Publisher *Publisher
}

// New creates an HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{
		eng:     d.Engine,
		editor:  d.Editor,
		lookups: d.Lookups,
		loader:  d.Loader,
		pub:     d.Publisher,
		mux:     http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/sessions", h.startSession)
	h.mux.HandleFunc("GET /v1/sessions/{id}", h.getSession)
	h.mux.HandleFunc("POST /v1/sessions/{id}/answers", h.submitAnswer)
	h.mux.HandleFunc("GET /v1/sessions/{id}/report", h.getReport)
	h.mux.HandleFunc("DELETE /v1/sessions/{id}", h.discardSession)

	h.mux.HandleFunc("GET /v1/editor/tree", h.editorTree)
	h.mux.HandleFunc("POST /v1/editor/questions", h.addQuestion)
	h.mux.HandleFunc("PUT /v1/editor/questions/{id}", h.updateQuestion)
	h.mux.HandleFunc("DELETE /v1/editor/questions/{id}", h.deleteQuestion)
	h.mux.HandleFunc("POST /v1/editor/reorder", h.reorder)
	h.mux.HandleFunc("POST /v1/editor/select/{id}", h.selectQuestion)
	h.mux.HandleFunc("POST /v1/editor/save", h.save)

	h.mux.HandleFunc("GET /v1/flow", h.getFlow)
	h.mux.HandleFunc("POST /v1/lookups/{kind}", h.lookup)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/sessions — start a respondent session.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.eng.Start()
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GET /v1/sessions/{id}
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.eng.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type answerResponse struct {
	Transition engine.Transition `json:"transition"`
	Session    engine.Snapshot   `json:"session"`
}

// POST /v1/sessions/{id}/answers — body is the bare answer value.
func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ans question.Answer
	if err := json.Unmarshal(body, &ans); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid answer: %s", err))
		return
	}

	tr, snap, err := h.eng.Submit(r.PathValue("id"), ans)
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, engine.ErrSessionComplete):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Transition: tr, Session: snap})
}

// GET /v1/sessions/{id}/report
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.eng.Report(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// DELETE /v1/sessions/{id}
func (h *Handler) discardSession(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.Discard(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type lookupRequest struct {
	Input string `json:"input"`
}

// POST /v1/lookups/{kind} — enrichment text for a code or description.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	res, err := h.lookups.Lookup(r.Context(), r.PathValue("kind"), req.Input)
	switch {
	case errors.Is(err, enrich.ErrUnknownKind):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, enrich.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, enrich.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /v1/flow — describe the published flow.
func (h *Handler) getFlow(w http.ResponseWriter, r *http.Request) {
	f := h.eng.Flow()
	initial := []question.ID{}
	for _, q := range f.Graph.Initial() {
		initial = append(initial, q.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":         h.loader.Path(),
		"questions":      f.Graph.Len(),
		"initial":        initial,
		"classification": f.Router.Routes(),
		"lookup_kinds":   h.lookups.Registry().Kinds(),
	})
}

// POST /v1/config/reload — hot-reload the questionnaire config from disk.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":               true,
		"version":                cfg.Version,
		"classification_entries": len(cfg.Classification),
		"injections":             len(cfg.Injections),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if sessions or the lookup queue are >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	sessions := h.eng.Utilization()
	lookups := h.lookups.QueueUtilization()
	status, code := "ready", http.StatusOK
	if sessions > 0.8 || lookups > 0.8 {
		status, code = "overloaded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":              status,
		"session_utilization": sessions,
		"lookup_utilization":  lookups,
	})
}
