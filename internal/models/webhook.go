package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookSubscription registers an endpoint for prompt change events.
// Secret is only populated on creation.
type WebhookSubscription struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
