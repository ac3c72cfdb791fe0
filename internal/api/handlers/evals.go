package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
	"github.com/promptdeck/promptdeck/internal/queue"
)

type EvalHandler struct {
	store prompt.Store
	queue *queue.Client
}

// NewEvalHandler returns eval endpoints. A nil queue client disables async
// runs with a 503 rather than failing at startup.
func NewEvalHandler(store prompt.Store, q *queue.Client) *EvalHandler {
	return &EvalHandler{store: store, queue: q}
}

type createEvalRequest struct {
	Score     float64     `json:"score"`
	Notes     string      `json:"notes"`
	CreatedBy models.User `json:"created_by"`
}

type runEvalRequest struct {
	Model string      `json:"model"`
	RunBy models.User `json:"run_by"`
}

func (h *EvalHandler) ListEvals(w http.ResponseWriter, r *http.Request) {
	id, number, ok := versionParams(w, r)
	if !ok {
		return
	}

	evals, err := h.store.ListEvals(r.Context(), id, number)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *EvalHandler) CreateEval(w http.ResponseWriter, r *http.Request) {
	id, number, ok := versionParams(w, r)
	if !ok {
		return
	}

	var req createEvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	e, err := h.store.CreateEval(r.Context(), id, number, prompt.CreateEvalParams{
		Score:     req.Score,
		Notes:     req.Notes,
		CreatedBy: requestUser(r, req.CreatedBy),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// RunAsync queues a model run of a version; the worker records the score.
func (h *EvalHandler) RunAsync(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "background runs not configured")
		return
	}

	id, number, ok := versionParams(w, r)
	if !ok {
		return
	}

	var req runEvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model required")
		return
	}

	// Reject unknown versions up front; the worker should only ever fail on
	// model trouble, not bad references.
	if _, err := h.store.GetVersion(r.Context(), id, number); err != nil {
		writeStoreError(w, err)
		return
	}

	err := h.queue.EnqueueEvalRun(queue.EvalRunPayload{
		PromptID: id,
		Version:  number,
		Model:    req.Model,
		RunBy:    requestUser(r, req.RunBy),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
