package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yhensel/burgers-api/pkg/mailer"
	mailtpl "github.com/yhensel/burgers-api/pkg/mailer/templates"
)

func TestRenderJob(t *testing.T) {
	t.Run("Template", func(t *testing.T) {
		job := mailer.EmailJob{To: "ann@x.com", Template: "WELCOME", Data: map[string]any{"Name": "Ann"}}
		subject, text, html, err := RenderJob(&job)
		require.NoError(t, err)
		assert.NotEmpty(t, subject)
		assert.Contains(t, text, "ann@x.com")
		assert.NotEmpty(t, html)
		assert.Equal(t, "ann@x.com", job.Data["RecipientEmail"])
	})

	t.Run("Raw", func(t *testing.T) {
		job := mailer.EmailJob{To: "ann@x.com", Subject: "hi", Text: "body"}
		subject, text, html, err := RenderJob(&job)
		require.NoError(t, err)
		assert.Equal(t, "hi", subject)
		assert.Equal(t, "body", text)
		assert.Empty(t, html)
	})

	t.Run("Empty", func(t *testing.T) {
		_, _, _, err := RenderJob(&mailer.EmailJob{To: "ann@x.com"})
		assert.Error(t, err)
	})

	t.Run("UnknownTemplate", func(t *testing.T) {
		_, _, _, err := RenderJob(&mailer.EmailJob{To: "ann@x.com", Template: "login_otp"})
		assert.Error(t, err)
	})
}

func TestEnsureRecipientAndEmailKeepsExisting(t *testing.T) {
	job := mailer.EmailJob{To: "a@x.com", Data: map[string]any{"Email": "b@x.com"}}
	EnsureRecipientAndEmail(&job)
	assert.Equal(t, "b@x.com", job.Data["Email"])
	assert.Equal(t, "a@x.com", job.Data["RecipientEmail"])
	assert.True(t, mailtpl.Known(mailtpl.Welcome))
}
