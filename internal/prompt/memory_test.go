package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/internal/models"
)

var alice = models.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com"}

func seedParams() CreatePromptParams {
	return CreatePromptParams{
		Title:       "Support greeting",
		Description: "Opening message for the support bot",
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "You are a support agent."},
			{Role: models.RoleUser, Content: "Hello"},
		},
		CreatedBy: alice,
	}
}

func TestCreatePromptStartsAtVersionOne(t *testing.T) {
	s := NewMemoryStore()

	p, err := s.CreatePrompt(context.Background(), seedParams())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, 1, p.CurrentVersion)
	require.Len(t, p.Versions, 1)
	assert.Equal(t, 1, p.Versions[0].Version)
	assert.Equal(t, p.ID, p.Versions[0].PromptID)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestCreatePromptValidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreatePromptParams)
		field  string
	}{
		{"empty title", func(p *CreatePromptParams) { p.Title = "  " }, "title"},
		{"empty description", func(p *CreatePromptParams) { p.Description = "" }, "description"},
		{"no messages", func(p *CreatePromptParams) { p.Messages = nil }, "messages"},
		{"bad role", func(p *CreatePromptParams) {
			p.Messages = []models.Message{{Role: "narrator", Content: "x"}}
		}, "messages"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := seedParams()
			tc.mutate(&params)

			_, err := s.CreatePrompt(ctx, params)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)

			// Nothing was written.
			prompts, err := s.ListPrompts(ctx)
			require.NoError(t, err)
			assert.Empty(t, prompts)
		})
	}
}

func TestCreateVersionNumbersAreContiguous(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	for i := 2; i <= 5; i++ {
		v, err := s.CreateVersion(ctx, p.ID, CreateVersionParams{
			Messages:  []models.Message{{Role: models.RoleUser, Content: "revision"}},
			CreatedBy: alice,
		})
		require.NoError(t, err)
		assert.Equal(t, i, v.Version)
	}

	got, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.CurrentVersion)
	require.Len(t, got.Versions, 5)
	for i, v := range got.Versions {
		assert.Equal(t, i+1, v.Version)
	}
	assert.Equal(t, got.CurrentVersion, got.Versions[len(got.Versions)-1].Version)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
}

func TestCreateVersionUnknownPrompt(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CreateVersion(context.Background(), uuid.New(), CreateVersionParams{
		Messages: []models.Message{{Role: models.RoleUser, Content: "x"}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVersionsAreImmutableThroughReads(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	// Mutating a returned copy must not leak into the store.
	got, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	got.Versions[0].Messages[0].Content = "tampered"
	got.Title = "tampered"

	again, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "You are a support agent.", again.Versions[0].Messages[0].Content)
	assert.Equal(t, "Support greeting", again.Title)

	// Same through the version read path.
	v, err := s.GetVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	v.Messages[0].Content = "tampered"

	v2, err := s.GetVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "You are a support agent.", v2.Messages[0].Content)
}

func TestCreateVersionDoesNotAliasCallerSlice(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msgs := []models.Message{{Role: models.RoleUser, Content: "original"}}
	p, err := s.CreatePrompt(ctx, CreatePromptParams{
		Title: "t", Description: "d", Messages: msgs, CreatedBy: alice,
	})
	require.NoError(t, err)

	msgs[0].Content = "changed after create"

	got, err := s.GetVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Messages[0].Content)
}

func TestUpdatePromptTouchesMetadataOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	title := "Renamed"
	got, err := s.UpdatePrompt(ctx, p.ID, UpdatePromptParams{Title: &title})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, p.Description, got.Description)
	assert.Equal(t, 1, got.CurrentVersion)
	assert.Len(t, got.Versions, 1)
}

func TestUpdatePromptRejectsBlankTitle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	blank := "   "
	_, err = s.UpdatePrompt(ctx, p.ID, UpdatePromptParams{Title: &blank})
	assert.True(t, IsValidation(err))

	got, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Support greeting", got.Title)
}

func TestUpdatePromptNotFound(t *testing.T) {
	s := NewMemoryStore()

	title := "x"
	_, err := s.UpdatePrompt(context.Background(), uuid.New(), UpdatePromptParams{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePromptCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	_, err = s.AddComment(ctx, p.ID, AddCommentParams{Content: "nice", CreatedBy: alice})
	require.NoError(t, err)
	_, err = s.CreateEval(ctx, p.ID, 1, CreateEvalParams{Score: 0.8, CreatedBy: alice})
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt(ctx, p.ID))

	_, err = s.GetPrompt(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListComments(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ListEvals(ctx, p.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Second delete of the same id fails; callers reconcile it as a no-op.
	assert.ErrorIs(t, s.DeletePrompt(ctx, p.ID), ErrNotFound)
}

func TestListPromptsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)
	params := seedParams()
	params.Title = "Second"
	second, err := s.CreatePrompt(ctx, params)
	require.NoError(t, err)

	prompts, err := s.ListPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	ids := []uuid.UUID{prompts[0].ID, prompts[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	assert.False(t, prompts[0].CreatedAt.Before(prompts[1].CreatedAt))
}

func TestGetVersionNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	_, err = s.GetVersion(ctx, p.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVersion(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentsAndEvals(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	c, err := s.AddComment(ctx, p.ID, AddCommentParams{Content: "ship it", CreatedBy: alice})
	require.NoError(t, err)
	assert.Equal(t, p.ID, c.PromptID)

	comments, err := s.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "ship it", comments[0].Content)

	_, err = s.AddComment(ctx, p.ID, AddCommentParams{Content: " "})
	assert.True(t, IsValidation(err))

	e, err := s.CreateEval(ctx, p.ID, 1, CreateEvalParams{Score: 0.9, Notes: "solid", CreatedBy: alice})
	require.NoError(t, err)
	assert.Equal(t, p.Versions[0].ID, e.VersionID)

	_, err = s.CreateEval(ctx, p.ID, 1, CreateEvalParams{Score: 1.5})
	assert.True(t, IsValidation(err))

	evals, err := s.ListEvals(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.InDelta(t, 0.9, evals[0].Score, 1e-9)
}

// Exercises the full edit-commit lifecycle the way the API would drive it.
func TestPromptLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p, err := s.CreatePrompt(ctx, seedParams())
	require.NoError(t, err)

	v2, err := s.CreateVersion(ctx, p.ID, CreateVersionParams{
		Messages: []models.Message{
			{Role: models.RoleSystem, Content: "You are a terse support agent."},
			{Role: models.RoleUser, Content: "Hello"},
		},
		Notes:     "tightened the system turn",
		CreatedBy: alice,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)

	desc := "Now terse"
	updated, err := s.UpdatePrompt(ctx, p.ID, UpdatePromptParams{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)

	// Version 1 is still exactly what was committed.
	v1, err := s.GetVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "You are a support agent.", v1.Messages[0].Content)
	assert.Empty(t, v1.Notes)

	require.NoError(t, s.DeletePrompt(ctx, p.ID))
	_, err = s.GetPrompt(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConflictErrorMessage(t *testing.T) {
	id := uuid.New()
	err := &ConflictError{PromptID: id, Version: 3}
	assert.Contains(t, err.Error(), "version 3")
	assert.Contains(t, err.Error(), id.String())
	var ce *ConflictError
	assert.True(t, errors.As(err, &ce))
}
