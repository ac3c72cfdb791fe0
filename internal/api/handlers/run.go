package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// RunHandler executes an ad-hoc message sequence against a model. This is
// the playground endpoint: nothing here reads or writes the prompt store.
type RunHandler struct {
	gateway llm.Gateway
}

func NewRunHandler(gw llm.Gateway) *RunHandler {
	return &RunHandler{gateway: gw}
}

func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages required")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model required")
		return
	}

	resp, err := h.gateway.Chat(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
