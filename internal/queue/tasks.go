package queue

import (
	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
)

const (
	TypeEvalRun = "eval:run"
)

// EvalRunPayload asks the worker to run a prompt version against a model
// and record the score.
type EvalRunPayload struct {
	PromptID uuid.UUID   `json:"prompt_id"`
	Version  int         `json:"version"`
	Model    string      `json:"model"`
	RunBy    models.User `json:"run_by"`
}
