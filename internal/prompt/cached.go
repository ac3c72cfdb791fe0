package prompt

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/cache"
	"github.com/promptdeck/promptdeck/internal/models"
)

const promptTTL = 5 * time.Minute

// CachedStore layers a Redis read cache over another Store. Reads of a
// single prompt are served from cache when possible; every write to a prompt
// drops its entry and the list entry. Cache failures are logged and ignored,
// the underlying store stays authoritative.
type CachedStore struct {
	Store
	cache *cache.Cache
}

func NewCachedStore(inner Store, c *cache.Cache) *CachedStore {
	return &CachedStore{Store: inner, cache: c}
}

func promptKey(id uuid.UUID) string { return "prompt:" + id.String() }

const listKey = "prompts:all"

func (s *CachedStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	var cached []models.Prompt
	if err := s.cache.Get(ctx, listKey, &cached); err == nil {
		return cached, nil
	}

	prompts, err := s.Store.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, listKey, prompts, promptTTL); err != nil {
		slog.Debug("cache set failed", "key", listKey, "error", err)
	}
	return prompts, nil
}

func (s *CachedStore) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var cached models.Prompt
	if err := s.cache.Get(ctx, promptKey(id), &cached); err == nil {
		return &cached, nil
	}

	p, err := s.Store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, promptKey(id), p, promptTTL); err != nil {
		slog.Debug("cache set failed", "key", promptKey(id), "error", err)
	}
	return p, nil
}

func (s *CachedStore) CreatePrompt(ctx context.Context, params CreatePromptParams) (*models.Prompt, error) {
	p, err := s.Store.CreatePrompt(ctx, params)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, listKey)
	return p, nil
}

func (s *CachedStore) UpdatePrompt(ctx context.Context, id uuid.UUID, params UpdatePromptParams) (*models.Prompt, error) {
	p, err := s.Store.UpdatePrompt(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, promptKey(id), listKey)
	return p, nil
}

func (s *CachedStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.DeletePrompt(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, promptKey(id), listKey)
	return nil
}

func (s *CachedStore) CreateVersion(ctx context.Context, promptID uuid.UUID, params CreateVersionParams) (*models.Version, error) {
	v, err := s.Store.CreateVersion(ctx, promptID, params)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, promptKey(promptID), listKey)
	return v, nil
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
