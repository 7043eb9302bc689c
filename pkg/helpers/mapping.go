package helpers

import (
	"fmt"
	"strings"

	"github.com/yhensel/burgers-api/pkg/mailer"
	mailtpl "github.com/yhensel/burgers-api/pkg/mailer/templates"
)

// EnsureRecipientAndEmail fills Email and RecipientEmail from job.To when missing.
func EnsureRecipientAndEmail(job *mailer.EmailJob) {
	if job.Data == nil {
		job.Data = map[string]any{}
	}
	if v, ok := job.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["Email"] = job.To
	}
	if v, ok := job.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		job.Data["RecipientEmail"] = job.To
	}
}

// RenderJob resolves the subject and bodies of a job, rendering its template when set.
func RenderJob(job *mailer.EmailJob) (subject, text, html string, err error) {
	if job.Template == "" {
		if job.Subject == "" || (job.Text == "" && job.HTML == "") {
			return "", "", "", fmt.Errorf("job for %s has neither template nor subject with body", job.To)
		}
		return job.Subject, job.Text, job.HTML, nil
	}
	EnsureRecipientAndEmail(job)
	return mailtpl.Render(strings.ToLower(job.Template), job.Data)
}
