// Package client is a Go façade over the prompt service HTTP API. Every
// method maps to one store operation and one round trip; failures surface
// as TransportError with the upstream status and message, never retried
// or suppressed. Input validation runs before any network call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
)

// TransportError reports a failed round trip: a non-2xx response or a
// network-level failure (Status 0).
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport: %s", e.Message)
	}
	return fmt.Sprintf("transport: status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
	token   string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAPIKey sends the key in the X-API-Key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	var prompts []models.Prompt
	if err := c.do(ctx, http.MethodGet, "/api/v1/prompts", nil, &prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

func (c *Client) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	if err := c.do(ctx, http.MethodGet, "/api/v1/prompts/"+id.String(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePrompt(ctx context.Context, params prompt.CreatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"title":       params.Title,
		"description": params.Description,
		"messages":    params.Messages,
		"created_by":  params.CreatedBy,
	}
	var p models.Prompt
	if err := c.do(ctx, http.MethodPost, "/api/v1/prompts", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdatePrompt(ctx context.Context, id uuid.UUID, params prompt.UpdatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{}
	if params.Title != nil {
		body["title"] = *params.Title
	}
	if params.Description != nil {
		body["description"] = *params.Description
	}
	var p models.Prompt
	if err := c.do(ctx, http.MethodPut, "/api/v1/prompts/"+id.String(), body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/prompts/"+id.String(), nil, nil)
}

func (c *Client) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.Version, error) {
	var versions []models.Version
	path := fmt.Sprintf("/api/v1/prompts/%s/versions", promptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *Client) GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*models.Version, error) {
	var v models.Version
	path := fmt.Sprintf("/api/v1/prompts/%s/versions/%d", promptID, number)
	if err := c.do(ctx, http.MethodGet, path, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CreateVersion(ctx context.Context, promptID uuid.UUID, params prompt.CreateVersionParams) (*models.Version, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"messages":   params.Messages,
		"notes":      params.Notes,
		"created_by": params.CreatedBy,
	}
	var v models.Version
	path := fmt.Sprintf("/api/v1/prompts/%s/versions", promptID)
	if err := c.do(ctx, http.MethodPost, path, body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) ListComments(ctx context.Context, promptID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	path := fmt.Sprintf("/api/v1/prompts/%s/comments", promptID)
	if err := c.do(ctx, http.MethodGet, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) AddComment(ctx context.Context, promptID uuid.UUID, params prompt.AddCommentParams) (*models.Comment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"content":    params.Content,
		"created_by": params.CreatedBy,
	}
	var comment models.Comment
	path := fmt.Sprintf("/api/v1/prompts/%s/comments", promptID)
	if err := c.do(ctx, http.MethodPost, path, body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) ListEvals(ctx context.Context, promptID uuid.UUID, version int) ([]models.Eval, error) {
	var evals []models.Eval
	path := fmt.Sprintf("/api/v1/prompts/%s/versions/%d/evals", promptID, version)
	if err := c.do(ctx, http.MethodGet, path, nil, &evals); err != nil {
		return nil, err
	}
	return evals, nil
}

func (c *Client) CreateEval(ctx context.Context, promptID uuid.UUID, version int, params prompt.CreateEvalParams) (*models.Eval, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"score":      params.Score,
		"notes":      params.Notes,
		"created_by": params.CreatedBy,
	}
	var e models.Eval
	path := fmt.Sprintf("/api/v1/prompts/%s/versions/%d/evals", promptID, version)
	if err := c.do(ctx, http.MethodPost, path, body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// RunRequest executes an ad-hoc message sequence against a model.
type RunRequest struct {
	Messages    []models.Message `json:"messages"`
	Model       string           `json:"model"`
	Provider    string           `json:"provider,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	TopP        float64          `json:"top_p,omitempty"`
}

type RunUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type RunResponse struct {
	Response string   `json:"response"`
	Model    string   `json:"model"`
	Usage    RunUsage `json:"usage"`
}

func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &prompt.ValidationError{Field: "messages", Reason: "must not be empty"}
	}
	if req.Model == "" {
		return nil, &prompt.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/run", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &TransportError{Status: resp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}

func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable error body"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
