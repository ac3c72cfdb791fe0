package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
)

// Store owns the canonical collection of prompts and enforces the version
// invariants: numbers are contiguous from 1, committed versions are
// immutable, and current_version always points at the latest version.
// No other component computes or enforces these.
type Store interface {
	ListPrompts(ctx context.Context) ([]models.Prompt, error)
	GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	CreatePrompt(ctx context.Context, params CreatePromptParams) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, id uuid.UUID, params UpdatePromptParams) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, id uuid.UUID) error

	ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.Version, error)
	GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*models.Version, error)
	CreateVersion(ctx context.Context, promptID uuid.UUID, params CreateVersionParams) (*models.Version, error)

	ListComments(ctx context.Context, promptID uuid.UUID) ([]models.Comment, error)
	AddComment(ctx context.Context, promptID uuid.UUID, params AddCommentParams) (*models.Comment, error)

	ListEvals(ctx context.Context, promptID uuid.UUID, number int) ([]models.Eval, error)
	CreateEval(ctx context.Context, promptID uuid.UUID, number int, params CreateEvalParams) (*models.Eval, error)
}

type CreatePromptParams struct {
	Title       string
	Description string
	Messages    []models.Message
	CreatedBy   models.User
}

// UpdatePromptParams updates prompt metadata only. Nil fields are left
// untouched; versions and current_version are never affected.
type UpdatePromptParams struct {
	Title       *string
	Description *string
}

type CreateVersionParams struct {
	Messages  []models.Message
	Notes     string
	CreatedBy models.User
}

type AddCommentParams struct {
	Content   string
	CreatedBy models.User
}

type CreateEvalParams struct {
	Score     float64
	Notes     string
	CreatedBy models.User
}

// Validate rejects empty titles, descriptions and message sequences before
// any store write happens.
func (p CreatePromptParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return validateMessages(p.Messages)
}

func (p CreateVersionParams) Validate() error {
	return validateMessages(p.Messages)
}

func (p UpdatePromptParams) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return nil
}

func (p AddCommentParams) Validate() error {
	if strings.TrimSpace(p.Content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	return nil
}

func (p CreateEvalParams) Validate() error {
	if p.Score < 0 || p.Score > 1 {
		return &ValidationError{Field: "score", Reason: "must be between 0 and 1"}
	}
	return nil
}

func validateMessages(msgs []models.Message) error {
	if len(msgs) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message required"}
	}
	for i, m := range msgs {
		if !m.Role.Valid() {
			return &ValidationError{Field: "messages", Reason: fmt.Sprintf("unknown role %q at index %d", m.Role, i)}
		}
	}
	return nil
}
