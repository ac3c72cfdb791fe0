// Package webhook notifies external endpoints about prompt changes.
// Subscriptions name the events they want; payloads are signed with a
// per-subscription secret so receivers can verify origin.
package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck/internal/models"
)

// Events emitted by the prompt API.
const (
	EventPromptCreated  = "prompt.created"
	EventPromptUpdated  = "prompt.updated"
	EventPromptDeleted  = "prompt.deleted"
	EventVersionCreated = "version.created"
)

func validEvent(e string) bool {
	switch e {
	case EventPromptCreated, EventPromptUpdated, EventPromptDeleted, EventVersionCreated:
		return true
	}
	return false
}

type Service struct {
	db         *pgxpool.Pool
	dispatcher *Dispatcher
}

// NewService returns a webhook service. A nil pool disables both
// subscription management and dispatch.
func NewService(db *pgxpool.Pool, dispatcher *Dispatcher) *Service {
	return &Service{db: db, dispatcher: dispatcher}
}

type CreateParams struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (p CreateParams) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url required")
	}
	if len(p.Events) == 0 {
		return fmt.Errorf("at least one event required")
	}
	for _, e := range p.Events {
		if !validEvent(e) {
			return fmt.Errorf("unknown event %q", e)
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*models.WebhookSubscription, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	eventsJSON, _ := json.Marshal(params.Events)

	var sub models.WebhookSubscription
	err = s.db.QueryRow(ctx,
		`INSERT INTO webhook_subscriptions (id, user_id, url, events, secret, is_active)
		 VALUES ($1, $2, $3, $4, $5, true)
		 RETURNING id, user_id, url, events, is_active, created_at`,
		uuid.New(), userID, params.URL, eventsJSON, secret,
	).Scan(&sub.ID, &sub.UserID, &sub.URL, &sub.Events, &sub.IsActive, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}

	// The secret is only returned on creation.
	sub.Secret = secret
	return &sub, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.WebhookSubscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, url, events, is_active, created_at
		 FROM webhook_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.WebhookSubscription
	for rows.Next() {
		var sub models.WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.URL, &sub.Events, &sub.IsActive, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM webhook_subscriptions WHERE id = $1 AND user_id = $2", id, userID)
	return err
}

// Dispatch fans an event out to every active matching subscription. It never
// fails the mutation that triggered it: lookup errors are returned for
// logging only, delivery happens in the background.
func (s *Service) Dispatch(ctx context.Context, event string, data any) error {
	if s == nil || s.db == nil {
		return nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, url, secret FROM webhook_subscriptions
		 WHERE is_active = true AND events @> $1::jsonb`,
		fmt.Sprintf(`[%q]`, event),
	)
	if err != nil {
		return fmt.Errorf("find matching subscriptions: %w", err)
	}
	defer rows.Close()

	payload, _ := json.Marshal(map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})

	for rows.Next() {
		var id uuid.UUID
		var url, secret string
		if err := rows.Scan(&id, &url, &secret); err != nil {
			continue
		}
		if s.dispatcher != nil {
			s.dispatcher.enqueue(delivery{
				SubscriptionID: id,
				URL:            url,
				Secret:         secret,
				Event:          event,
				Payload:        payload,
			})
		}
	}
	return rows.Err()
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
