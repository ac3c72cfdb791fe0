package prompt

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced prompt or version does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a request rejected before any I/O was performed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports a version number collision on append. Two writers
// racing on the same prompt hit the (prompt_id, version) unique constraint;
// the loser gets this instead of silently overwriting history.
type ConflictError struct {
	PromptID uuid.UUID
	Version  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version %d already exists for prompt %s", e.Version, e.PromptID)
}
