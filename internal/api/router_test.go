package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/models"
)

func testHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{APIKeyHeader: "X-API-Key"},
		LLM:  config.LLMConfig{DefaultProvider: "openai", DefaultModel: "gpt-4o-mini"},
	}
	return NewRouter(nil, nil, cfg).Setup()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func createPrompt(t *testing.T, h http.Handler) models.Prompt {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/prompts", map[string]any{
		"title":       "Order status",
		"description": "Looks up an order and summarizes it",
		"messages": []map[string]string{
			{"role": "system", "content": "You check order status."},
			{"role": "user", "content": "Where is my order?"},
		},
		"created_by": map[string]string{"name": "Dana", "email": "dana@example.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Prompt](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
}

func TestPromptCRUDOverHTTP(t *testing.T) {
	h := testHandler(t)

	p := createPrompt(t, h)
	assert.Equal(t, 1, p.CurrentVersion)
	require.Len(t, p.Versions, 1)

	// The wire round trip reproduces an equal prompt.
	rec := doJSON(t, h, http.MethodGet, "/api/v1/prompts/"+p.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Prompt](t, rec)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, p.CurrentVersion, got.CurrentVersion)
	assert.Equal(t, p.Versions[0].Messages, got.Versions[0].Messages)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/prompts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.Prompt](t, rec)
	require.Len(t, list, 1)

	rec = doJSON(t, h, http.MethodPut, "/api/v1/prompts/"+p.ID.String(), map[string]any{
		"title": "Order lookup",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[models.Prompt](t, rec)
	assert.Equal(t, "Order lookup", updated.Title)
	assert.Equal(t, p.Description, updated.Description)
	assert.Equal(t, 1, updated.CurrentVersion)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/prompts/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/prompts/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/prompts/"+p.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePromptValidation(t *testing.T) {
	h := testHandler(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"empty title", map[string]any{
			"title": " ", "description": "d",
			"messages": []map[string]string{{"role": "user", "content": "x"}},
		}},
		{"no messages", map[string]any{
			"title": "t", "description": "d",
		}},
		{"bad role", map[string]any{
			"title": "t", "description": "d",
			"messages": []map[string]string{{"role": "narrator", "content": "x"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/v1/prompts", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[map[string]string](t, rec)
			assert.NotEmpty(t, body["error"])
		})
	}

	// Nothing was persisted by the rejected requests.
	rec := doJSON(t, h, http.MethodGet, "/api/v1/prompts", nil)
	list := decode[[]models.Prompt](t, rec)
	assert.Empty(t, list)
}

func TestVersionEndpoints(t *testing.T) {
	h := testHandler(t)
	p := createPrompt(t, h)

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/versions", p.ID), map[string]any{
		"messages": []map[string]string{
			{"role": "system", "content": "You check order status, tersely."},
		},
		"notes": "terser",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[models.Version](t, rec)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, "terser", v.Notes)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/versions", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[[]models.Version](t, rec)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/versions/1", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v1 := decode[models.Version](t, rec)
	assert.Equal(t, "You check order status.", v1.Messages[0].Content)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/versions/9", p.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/versions/0", p.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Version append with no messages is rejected without bumping anything.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/versions", p.ID), map[string]any{
		"messages": []map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/prompts/"+p.ID.String(), nil)
	got := decode[models.Prompt](t, rec)
	assert.Equal(t, 2, got.CurrentVersion)
}

func TestCommentAndEvalEndpoints(t *testing.T) {
	h := testHandler(t)
	p := createPrompt(t, h)

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/comments", p.ID), map[string]any{
		"content":    "needs a friendlier opener",
		"created_by": map[string]string{"name": "Dana"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/comments", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[[]models.Comment](t, rec)
	require.Len(t, comments, 1)
	assert.Equal(t, "needs a friendlier opener", comments[0].Content)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/versions/1/evals", p.ID), map[string]any{
		"score": 0.75,
		"notes": "decent",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/v1/prompts/%s/versions/1/evals", p.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evals := decode[[]models.Eval](t, rec)
	require.Len(t, evals, 1)
	assert.InDelta(t, 0.75, evals[0].Score, 1e-9)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/versions/1/evals", p.ID), map[string]any{
		"score": 2.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvalRunWithoutQueue(t *testing.T) {
	h := testHandler(t)
	p := createPrompt(t, h)

	rec := doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/v1/prompts/%s/versions/1/evals/run", p.ID), map[string]any{
		"model": "gpt-4o-mini",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunValidation(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/run", map[string]any{
		"model": "gpt-4o-mini",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/run", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No provider configured in tests, so a well-formed request fails upstream.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/run", map[string]any{
		"model":    "gpt-4o-mini",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInvalidPromptID(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/prompts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKeyRoutesRequireDatabase(t *testing.T) {
	h := testHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/keys", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
