package prompt

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
)

// MemoryStore keeps the whole collection in process memory behind a single
// mutex. Every prompt handed out is a deep copy, so callers only ever hold
// disposable projections; the canonical copy is mutated exclusively through
// Store operations. Useful for development and as the fixture for handler
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	prompts  map[uuid.UUID]*models.Prompt
	comments map[uuid.UUID][]models.Comment // keyed by prompt id
	evals    map[uuid.UUID][]models.Eval    // keyed by version id
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prompts:  make(map[uuid.UUID]*models.Prompt),
		comments: make(map[uuid.UUID][]models.Comment),
		evals:    make(map[uuid.UUID][]models.Eval),
		now:      time.Now,
	}
}

func (s *MemoryStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := p.Clone()
	return &clone, nil
}

func (s *MemoryStore) CreatePrompt(ctx context.Context, params CreatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := uuid.New()
	p := &models.Prompt{
		ID:          id,
		Title:       params.Title,
		Description: params.Description,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Versions: []models.Version{{
			ID:        uuid.New(),
			PromptID:  id,
			Version:   1,
			Messages:  models.CloneMessages(params.Messages),
			CreatedBy: params.CreatedBy,
			CreatedAt: now,
		}},
		CurrentVersion: 1,
	}
	s.prompts[id] = p

	clone := p.Clone()
	return &clone, nil
}

func (s *MemoryStore) UpdatePrompt(ctx context.Context, id uuid.UUID, params UpdatePromptParams) (*models.Prompt, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if params.Title != nil {
		p.Title = *params.Title
	}
	if params.Description != nil {
		p.Description = *params.Description
	}
	p.UpdatedAt = s.now().UTC()

	clone := p.Clone()
	return &clone, nil
}

func (s *MemoryStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok {
		return ErrNotFound
	}
	for _, v := range p.Versions {
		delete(s.evals, v.ID)
	}
	delete(s.comments, id)
	delete(s.prompts, id)
	return nil
}

func (s *MemoryStore) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[promptID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Version, len(p.Versions))
	for i, v := range p.Versions {
		out[i] = v.Clone()
	}
	return out, nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, promptID uuid.UUID, number int) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.versionLocked(promptID, number)
}

func (s *MemoryStore) versionLocked(promptID uuid.UUID, number int) (*models.Version, error) {
	p, ok := s.prompts[promptID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, v := range p.Versions {
		if v.Version == number {
			clone := v.Clone()
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateVersion(ctx context.Context, promptID uuid.UUID, params CreateVersionParams) (*models.Version, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[promptID]
	if !ok {
		return nil, ErrNotFound
	}

	// Append and pointer bump happen under one lock: observers never see a
	// prompt whose current_version disagrees with its version list.
	v := models.Version{
		ID:        uuid.New(),
		PromptID:  promptID,
		Version:   p.CurrentVersion + 1,
		Messages:  models.CloneMessages(params.Messages),
		CreatedBy: params.CreatedBy,
		CreatedAt: s.now().UTC(),
		Notes:     params.Notes,
	}
	p.Versions = append(p.Versions, v)
	p.CurrentVersion = v.Version
	p.UpdatedAt = v.CreatedAt

	clone := v.Clone()
	return &clone, nil
}

func (s *MemoryStore) ListComments(ctx context.Context, promptID uuid.UUID) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.prompts[promptID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Comment, len(s.comments[promptID]))
	copy(out, s.comments[promptID])
	return out, nil
}

func (s *MemoryStore) AddComment(ctx context.Context, promptID uuid.UUID, params AddCommentParams) (*models.Comment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prompts[promptID]; !ok {
		return nil, ErrNotFound
	}
	c := models.Comment{
		ID:        uuid.New(),
		PromptID:  promptID,
		Content:   params.Content,
		CreatedBy: params.CreatedBy,
		CreatedAt: s.now().UTC(),
	}
	s.comments[promptID] = append(s.comments[promptID], c)
	return &c, nil
}

func (s *MemoryStore) ListEvals(ctx context.Context, promptID uuid.UUID, number int) ([]models.Eval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, err := s.versionLocked(promptID, number)
	if err != nil {
		return nil, err
	}
	out := make([]models.Eval, len(s.evals[v.ID]))
	copy(out, s.evals[v.ID])
	return out, nil
}

func (s *MemoryStore) CreateEval(ctx context.Context, promptID uuid.UUID, number int, params CreateEvalParams) (*models.Eval, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.versionLocked(promptID, number)
	if err != nil {
		return nil, err
	}
	e := models.Eval{
		ID:        uuid.New(),
		VersionID: v.ID,
		Score:     params.Score,
		Notes:     params.Notes,
		CreatedBy: params.CreatedBy,
		CreatedAt: s.now().UTC(),
	}
	s.evals[v.ID] = append(s.evals[v.ID], e)
	return &e, nil
}
