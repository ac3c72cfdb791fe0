package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/audit"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
	"github.com/promptdeck/promptdeck/internal/webhook"
)

type PromptHandler struct {
	store    prompt.Store
	audit    *audit.Service
	webhooks *webhook.Service
}

func NewPromptHandler(store prompt.Store, auditSvc *audit.Service, webhooks *webhook.Service) *PromptHandler {
	return &PromptHandler{store: store, audit: auditSvc, webhooks: webhooks}
}

// emit fans a change event out to webhook subscribers. Failures are logged
// by the webhook service and never fail the mutation.
func (h *PromptHandler) emit(r *http.Request, event string, data any) {
	if h.webhooks == nil {
		return
	}
	if err := h.webhooks.Dispatch(r.Context(), event, data); err != nil {
		slog.Warn("webhook dispatch failed", "event", event, "error", err)
	}
}

type createPromptRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Messages    []models.Message `json:"messages"`
	CreatedBy   models.User      `json:"created_by"`
}

type updatePromptRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type createVersionRequest struct {
	Messages  []models.Message `json:"messages"`
	Notes     string           `json:"notes"`
	CreatedBy models.User      `json:"created_by"`
}

type addCommentRequest struct {
	Content   string      `json:"content"`
	CreatedBy models.User `json:"created_by"`
}

func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.store.ListPrompts(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	p, err := h.store.GetPrompt(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.CreatePrompt(r.Context(), prompt.CreatePromptParams{
		Title:       req.Title,
		Description: req.Description,
		Messages:    req.Messages,
		CreatedBy:   requestUser(r, req.CreatedBy),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		Action: "prompt.create", ResourceType: "prompt", ResourceID: &p.ID,
		Details: map[string]any{"title": p.Title},
	})
	h.emit(r, webhook.EventPromptCreated, p)
	writeJSON(w, http.StatusCreated, p)
}

func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	var req updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.UpdatePrompt(r.Context(), id, prompt.UpdatePromptParams{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		Action: "prompt.update", ResourceType: "prompt", ResourceID: &p.ID,
	})
	h.emit(r, webhook.EventPromptUpdated, p)
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	if err := h.store.DeletePrompt(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		Action: "prompt.delete", ResourceType: "prompt", ResourceID: &id,
	})
	h.emit(r, webhook.EventPromptDeleted, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *PromptHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	versions, err := h.store.ListVersions(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *PromptHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, number, ok := versionParams(w, r)
	if !ok {
		return
	}

	v, err := h.store.GetVersion(r.Context(), id, number)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *PromptHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.store.CreateVersion(r.Context(), id, prompt.CreateVersionParams{
		Messages:  req.Messages,
		Notes:     req.Notes,
		CreatedBy: requestUser(r, req.CreatedBy),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Entry{
		Action: "version.create", ResourceType: "prompt", ResourceID: &id,
		Details: map[string]any{"version": v.Version},
	})
	h.emit(r, webhook.EventVersionCreated, v)
	writeJSON(w, http.StatusCreated, v)
}

func (h *PromptHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	comments, err := h.store.ListComments(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *PromptHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.store.AddComment(r.Context(), id, prompt.AddCommentParams{
		Content:   req.Content,
		CreatedBy: requestUser(r, req.CreatedBy),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func versionParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return uuid.Nil, 0, false
	}
	number, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || number < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return uuid.Nil, 0, false
	}
	return id, number, true
}
