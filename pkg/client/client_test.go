package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/api"
	"github.com/promptdeck/promptdeck/internal/config"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Auth: config.AuthConfig{APIKeyHeader: "X-API-Key"},
		LLM:  config.LLMConfig{DefaultProvider: "openai"},
	}
	srv := httptest.NewServer(api.NewRouter(nil, nil, cfg).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func seedParams() prompt.CreatePromptParams {
	return prompt.CreatePromptParams{
		Title:       "Refund policy",
		Description: "Explains the refund policy",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "You explain refund policy."},
			{Role: models.RoleUser, Content: "Can I get a refund?"},
		},
		CreatedBy: models.User{ID: uuid.New(), Name: "Sam"},
	}
}

func TestClientRoundTrip(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	created, err := c.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)
	assert.Equal(t, 1, created.CurrentVersion)

	// A created prompt fetched back over the wire is equal.
	got, err := c.GetPrompt(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, created.CurrentVersion, got.CurrentVersion)
	require.Len(t, got.Versions, 1)
	assert.Equal(t, created.Versions[0].Messages, got.Versions[0].Messages)

	prompts, err := c.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)

	v, err := c.CreateVersion(ctx, created.ID, prompt.CreateVersionParams{
		Messages: []models.Message{{Role: models.RoleSystem, Content: "Be brief."}},
		Notes:    "shorter",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)

	versions, err := c.ListVersions(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	v1, err := c.GetVersion(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "You explain refund policy.", v1.Messages[0].Content)

	title := "Refunds"
	updated, err := c.UpdatePrompt(ctx, created.ID, prompt.UpdatePromptParams{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Refunds", updated.Title)
	assert.Equal(t, 2, updated.CurrentVersion)

	comment, err := c.AddComment(ctx, created.ID, prompt.AddCommentParams{Content: "lgtm"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, comment.PromptID)

	comments, err := c.ListComments(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	e, err := c.CreateEval(ctx, created.ID, 2, prompt.CreateEvalParams{Score: 0.6, Notes: "ok"})
	require.NoError(t, err)
	assert.Equal(t, v.ID, e.VersionID)

	evals, err := c.ListEvals(ctx, created.ID, 2)
	require.NoError(t, err)
	require.Len(t, evals, 1)

	require.NoError(t, c.DeletePrompt(ctx, created.ID))

	_, err = c.GetPrompt(ctx, created.ID)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.Status)
}

func TestClientValidatesBeforeAnyNetworkCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.CreatePrompt(ctx, prompt.CreatePromptParams{Title: " "})
	assert.True(t, prompt.IsValidation(err))

	_, err = c.CreateVersion(ctx, uuid.New(), prompt.CreateVersionParams{})
	assert.True(t, prompt.IsValidation(err))

	_, err = c.Run(ctx, RunRequest{Model: "gpt-4o-mini"})
	assert.True(t, prompt.IsValidation(err))

	assert.Zero(t, calls)
}

func TestTransportErrorCarriesUpstreamMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"version 2 already exists"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetPrompt(context.Background(), uuid.New())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusConflict, te.Status)
	assert.Equal(t, "version 2 already exists", te.Message)
	assert.Contains(t, te.Error(), "409")
}

func TestTransportErrorOnNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL)
	_, err := c.ListPrompts(context.Background())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
}

func TestClientSendsCredentials(t *testing.T) {
	var gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("pd_secret"), WithToken("jwt-token"))
	_, err := c.ListPrompts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pd_secret", gotKey)
	assert.Equal(t, "Bearer jwt-token", gotAuth)
}

func TestOptimisticDeleteCommits(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	p, err := c.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	m := c.OptimisticDelete(ctx, p, p.ID)
	state, err := m.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, MutationCommitted, state)
	assert.Equal(t, p, m.Snapshot())
}

func TestOptimisticDeleteTreats404AsCommitted(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	// Deleting something already gone reconciles as a no-op.
	m := c.OptimisticDelete(ctx, nil, uuid.New())
	state, err := m.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, MutationCommitted, state)
}

func TestOptimisticDeleteRollsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	snapshot := &models.Prompt{ID: uuid.New(), Title: "keep me"}

	m := c.OptimisticDelete(context.Background(), snapshot, snapshot.ID)
	state, err := m.Wait(context.Background())
	assert.Equal(t, MutationRolledBack, state)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Equal(t, "keep me", m.Snapshot().Title)
}

func TestMutationSettlesOnce(t *testing.T) {
	m := NewMutation(nil)
	assert.Equal(t, MutationPending, m.State())

	m.Commit()
	m.Rollback(errors.New("late"))

	assert.Equal(t, MutationCommitted, m.State())
	assert.NoError(t, m.Err())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := m.Wait(ctx)
	assert.Equal(t, MutationCommitted, state)
	assert.NoError(t, err)
}
