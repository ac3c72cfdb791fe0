// Package eval runs a committed prompt version against a model and records
// the outcome as an eval on that version. Runs happen off the request path,
// driven by the worker.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/llm"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
)

// Runner executes a version's conversation, asks a judge model to score the
// reply, and stores the score through the prompt store.
type Runner struct {
	store   prompt.Store
	gateway llm.Gateway
	judge   string // judge model, defaults to gpt-4o
}

func NewRunner(store prompt.Store, gw llm.Gateway, judgeModel string) *Runner {
	if judgeModel == "" {
		judgeModel = "gpt-4o"
	}
	return &Runner{store: store, gateway: gw, judge: judgeModel}
}

// RunParams identifies the version to run and the model to run it against.
type RunParams struct {
	PromptID uuid.UUID   `json:"prompt_id"`
	Version  int         `json:"version"`
	Model    string      `json:"model"`
	RunBy    models.User `json:"run_by"`
}

// Run executes the version and records an eval. The eval's notes hold the
// judge's reasoning with a snippet of the model reply.
func (r *Runner) Run(ctx context.Context, params RunParams) (*models.Eval, error) {
	v, err := r.store.GetVersion(ctx, params.PromptID, params.Version)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Model:    params.Model,
		Messages: v.Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("run version %d: %w", params.Version, err)
	}

	score, reasoning, err := r.judgeResponse(ctx, v.Messages, resp.Response)
	if err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("model=%s score rationale: %s\n---\n%s", resp.Model, reasoning, snippet(resp.Response, 500))
	return r.store.CreateEval(ctx, params.PromptID, params.Version, prompt.CreateEvalParams{
		Score:     score,
		Notes:     notes,
		CreatedBy: params.RunBy,
	})
}

func (r *Runner) judgeResponse(ctx context.Context, conversation []models.Message, response string) (float64, string, error) {
	var transcript strings.Builder
	for _, m := range conversation {
		fmt.Fprintf(&transcript, "[%s] %s\n", m.Role, m.Content)
	}

	resp, err := r.gateway.Chat(ctx, llm.ChatRequest{
		Model: r.judge,
		Messages: []models.Message{
			{
				Role: models.RoleSystem,
				Content: `You evaluate how well an AI response fulfils a prompt. Score accuracy,
completeness, clarity and helpfulness, each 0 to 1. Reply with ONLY a JSON object:
{"score": 0.0, "reasoning": "brief explanation"}
where "score" is the overall quality from 0 to 1.`,
			},
			{
				Role:    models.RoleUser,
				Content: fmt.Sprintf("Prompt transcript:\n%s\nResponse being evaluated:\n%s", transcript.String(), response),
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return 0, "", fmt.Errorf("judge: %w", err)
	}

	var verdict struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	raw := extractJSON(resp.Response)
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return 0, "", fmt.Errorf("parse judge verdict: %w", err)
	}
	if verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > 1 {
		verdict.Score = 1
	}
	return verdict.Score, verdict.Reasoning, nil
}

// extractJSON pulls the first {...} block out of a reply that may be wrapped
// in markdown fences or prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
