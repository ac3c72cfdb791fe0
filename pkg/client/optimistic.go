package client

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/internal/models"
)

// MutationState tracks the lifecycle of an optimistic local change.
type MutationState int

const (
	// MutationPending means the local change is applied but the server has
	// not confirmed it yet.
	MutationPending MutationState = iota
	// MutationCommitted means the server accepted the change.
	MutationCommitted
	// MutationRolledBack means the server rejected the change and the local
	// state must be restored.
	MutationRolledBack
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Mutation is a local change applied before its server round trip resolves.
// Callers apply the change, start the request, and settle the mutation with
// the outcome; on rollback the snapshot carries what must be restored.
type Mutation struct {
	mu       sync.Mutex
	state    MutationState
	err      error
	snapshot *models.Prompt
	done     chan struct{}
}

// NewMutation records the pre-change state so a rollback can restore it.
// snapshot may be nil for additive changes.
func NewMutation(snapshot *models.Prompt) *Mutation {
	return &Mutation{
		state:    MutationPending,
		snapshot: snapshot,
		done:     make(chan struct{}),
	}
}

// Commit settles the mutation as accepted. No-op after the first settle.
func (m *Mutation) Commit() {
	m.settle(MutationCommitted, nil)
}

// Rollback settles the mutation as rejected with the causing error.
func (m *Mutation) Rollback(err error) {
	m.settle(MutationRolledBack, err)
}

func (m *Mutation) settle(state MutationState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MutationPending {
		return
	}
	m.state = state
	m.err = err
	close(m.done)
}

func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the rollback cause, nil unless rolled back.
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Snapshot returns the pre-change state for restoring after a rollback.
func (m *Mutation) Snapshot() *models.Prompt {
	return m.snapshot
}

// Wait blocks until the mutation settles or ctx is done.
func (m *Mutation) Wait(ctx context.Context) (MutationState, error) {
	select {
	case <-m.done:
		return m.State(), m.Err()
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

// OptimisticDelete removes the prompt locally first, then issues the DELETE
// and settles the returned mutation with the outcome. A 404 settles as
// committed: the row is already gone, and reconciliation treats that as a
// no-op rather than a failure. The caller restores from Snapshot on
// rollback.
func (c *Client) OptimisticDelete(ctx context.Context, snapshot *models.Prompt, id uuid.UUID) *Mutation {
	m := NewMutation(snapshot)

	go func() {
		err := c.DeletePrompt(ctx, id)
		if err == nil {
			m.Commit()
			return
		}
		var te *TransportError
		if errors.As(err, &te) && te.Status == http.StatusNotFound {
			m.Commit()
			return
		}
		m.Rollback(err)
	}()

	return m
}
