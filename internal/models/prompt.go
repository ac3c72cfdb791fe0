package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the speaker of one turn in a conversation template.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three allowed roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single turn in a conversation template. Order is the literal
// transcript order sent to a model; duplicate roles are allowed.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Version is an immutable numbered snapshot of a prompt's message sequence.
// Version numbers for a prompt are contiguous starting at 1 and are assigned
// by the store, never by callers.
type Version struct {
	ID        uuid.UUID `json:"id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Version   int       `json:"version"`
	Messages  []Message `json:"messages"`
	CreatedBy User      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Prompt is a named unit of LLM instruction under version control.
// CurrentVersion always equals the number of the most recently created
// version, and Versions is never empty once the prompt exists.
type Prompt struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedBy      User      `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Versions       []Version `json:"versions"`
	CurrentVersion int       `json:"current_version"`
}

// Comment is a free-form note attached to a prompt.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Content   string    `json:"content"`
	CreatedBy User      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Eval records a score for one version of a prompt.
type Eval struct {
	ID        uuid.UUID `json:"id"`
	VersionID uuid.UUID `json:"version_id"`
	Score     float64   `json:"score"`
	Notes     string    `json:"notes"`
	CreatedBy User      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// CloneMessages returns an independent copy of msgs so callers cannot
// mutate a committed version through a shared slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clone returns a deep copy of the version.
func (v Version) Clone() Version {
	v.Messages = CloneMessages(v.Messages)
	return v
}

// Clone returns a deep copy of the prompt and all its versions.
func (p Prompt) Clone() Prompt {
	if p.Versions != nil {
		versions := make([]Version, len(p.Versions))
		for i, v := range p.Versions {
			versions[i] = v.Clone()
		}
		p.Versions = versions
	}
	return p
}
