package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateParamsValidate(t *testing.T) {
	valid := CreateParams{
		URL:    "https://example.com/hooks",
		Events: []string{EventPromptCreated, EventVersionCreated},
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, CreateParams{Events: []string{EventPromptCreated}}.Validate())
	assert.Error(t, CreateParams{URL: "https://example.com"}.Validate())
	assert.Error(t, CreateParams{
		URL:    "https://example.com",
		Events: []string{"prompt.archived"},
	}.Validate())
}

func TestSignIsDeterministicPerSecret(t *testing.T) {
	payload := []byte(`{"event":"prompt.created"}`)

	a := sign(payload, "whsec_one")
	b := sign(payload, "whsec_one")
	c := sign(payload, "whsec_two")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, a)
}
