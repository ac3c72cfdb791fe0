package models

import (
	"time"

	"github.com/google/uuid"
)

// User identifies the creator of a prompt, version, comment or eval.
// It is referenced, never owned: once recorded on an entity it is immutable.
type User struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// APIKey is an opaque name-to-hash record. The raw key is returned exactly
// once at issuance and only its SHA-256 hash is stored.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
