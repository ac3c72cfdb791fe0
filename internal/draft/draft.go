// Package draft holds in-progress, possibly invalid edits to a version's
// message sequence. A draft is a disposable local projection: nothing here
// touches the committed history until Commit asks the store for a new
// version. Editing never mutates the version the draft was seeded from.
package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/promptdeck/promptdeck/internal/models"
	"github.com/promptdeck/promptdeck/internal/prompt"
)

// ErrLastMessage is returned when a delete would leave the draft empty.
// The store rejects empty sequences on commit anyway; this guard keeps the
// editing surface from reaching that state at all.
var ErrLastMessage = errors.New("draft must keep at least one message")

// Draft is an editable copy of a version's messages with a dirty flag.
type Draft struct {
	promptID uuid.UUID
	base     int // version number the draft was seeded from, 0 for a fresh draft
	messages []models.Message
	saved    bool
}

// FromVersion seeds a draft from a committed version.
func FromVersion(v models.Version) *Draft {
	return &Draft{
		promptID: v.PromptID,
		base:     v.Version,
		messages: models.CloneMessages(v.Messages),
		saved:    true,
	}
}

// New starts an empty draft for a prompt with no seed version.
func New(promptID uuid.UUID) *Draft {
	return &Draft{promptID: promptID, saved: true}
}

// Saved reports whether all changes have been acknowledged since the last
// edit. It says nothing about whether a version has been committed.
func (d *Draft) Saved() bool { return d.saved }

// Base returns the version number the draft was seeded from, 0 if none.
func (d *Draft) Base() int { return d.base }

// Messages returns a copy of the working sequence.
func (d *Draft) Messages() []models.Message {
	return models.CloneMessages(d.messages)
}

// AddMessage appends an empty message with the given role.
func (d *Draft) AddMessage(role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	d.messages = append(d.messages, models.Message{Role: role})
	d.saved = false
	return nil
}

// EditMessage replaces the content at index i.
func (d *Draft) EditMessage(i int, content string) error {
	if i < 0 || i >= len(d.messages) {
		return fmt.Errorf("message index %d out of range", i)
	}
	d.messages[i].Content = content
	d.saved = false
	return nil
}

// DeleteMessage removes the message at index i, refusing to empty the draft.
func (d *Draft) DeleteMessage(i int) error {
	if i < 0 || i >= len(d.messages) {
		return fmt.Errorf("message index %d out of range", i)
	}
	if len(d.messages) == 1 {
		return ErrLastMessage
	}
	d.messages = append(d.messages[:i], d.messages[i+1:]...)
	d.saved = false
	return nil
}

// Save marks the draft clean. It deliberately does not write anything:
// committed versions are immutable, so the only way edits become durable is
// Commit creating a new version.
func (d *Draft) Save() {
	d.saved = true
}

// Commit turns the draft into a new immutable version via the store and
// reseeds the draft from the result. The draft is untouched on failure.
func (d *Draft) Commit(ctx context.Context, store prompt.Store, by models.User, notes string) (*models.Version, error) {
	v, err := store.CreateVersion(ctx, d.promptID, prompt.CreateVersionParams{
		Messages:  d.Messages(),
		Notes:     notes,
		CreatedBy: by,
	})
	if err != nil {
		return nil, err
	}
	d.base = v.Version
	d.messages = models.CloneMessages(v.Messages)
	d.saved = true
	return v, nil
}
