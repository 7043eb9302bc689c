package messaging

import (
	"context"
	"fmt"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/pkg/mailer"
	mailtpl "github.com/yhensel/burgers-api/pkg/mailer/templates"
)

// JSONPublisher is satisfied by *helpers.RabbitPublisher.
type JSONPublisher interface {
	PublishJSONTo(ctx context.Context, queue string, body any) error
}

// UserEventPublisher puts lifecycle events on the events queue and, when mail
// is enabled, the matching account email job on the email queue.
type UserEventPublisher struct {
	Broker      JSONPublisher
	EventsQueue string
	EmailQueue  string
	MailEnabled bool
	Branding    mailtpl.Branding
}

func (p *UserEventPublisher) PublishUserEvent(ctx context.Context, ev application.UserEvent) error {
	if err := p.Broker.PublishJSONTo(ctx, p.EventsQueue, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	if !p.MailEnabled || ev.Email == "" {
		return nil
	}
	job, ok := p.emailJob(ev)
	if !ok {
		return nil
	}
	if err := p.Broker.PublishJSONTo(ctx, p.EmailQueue, job); err != nil {
		return fmt.Errorf("enqueue %s email: %w", job.Template, err)
	}
	return nil
}

func (p *UserEventPublisher) emailJob(ev application.UserEvent) (mailer.EmailJob, bool) {
	at := mailtpl.WithTime(ev.OccurredAt)
	job := mailer.EmailJob{To: ev.Email}
	switch ev.Type {
	case application.EventUserCreated:
		job.Template = mailtpl.Welcome
		job.Data = mailtpl.NewWelcomeData(p.Branding, ev.Name, ev.Email, at)
	case application.EventUserUpdated:
		if len(ev.Changes) == 0 {
			return job, false
		}
		job.Template = mailtpl.ProfileUpdated
		job.Data = mailtpl.NewProfileUpdatedData(p.Branding, ev.Name, ev.Email, ev.Changes, at)
	case application.EventUserDeleted:
		job.Template = mailtpl.AccountDeleted
		job.Data = mailtpl.NewAccountDeletedData(p.Branding, ev.Name, ev.Email, at)
	default:
		return job, false
	}
	return job, true
}

var _ application.EventPublisher = (*UserEventPublisher)(nil)
