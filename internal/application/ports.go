package application

import (
	"context"
	"time"

	"github.com/yhensel/burgers-api/internal/domain/entity"
)

// Hasher is the one-way credential transform used for user passwords and client secrets.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// SearchIndex is a secondary projection of users kept for full-text search.
type SearchIndex interface {
	IndexUser(ctx context.Context, u *entity.User) error
	DeleteUser(ctx context.Context, id string) error
}

// UserCache caches the public representation of users by id.
// Cached values never carry the password hash. Delete bumps the id's generation;
// Set stores only while the generation still equals gen, so a fill that read the
// store before a committed change cannot bring the old record back.
type UserCache interface {
	Get(ctx context.Context, id string) (*entity.User, bool, error)
	Generation(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, u *entity.User, gen int64) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher announces committed user lifecycle changes.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, ev UserEvent) error
}

// TokenIssuer signs bearer access tokens.
type TokenIssuer interface {
	GenerateAccessToken(userID, clientID string) (string, time.Time, error)
}

const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserEvent is the payload of a lifecycle notification.
type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Changes    []string  `json:"changes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
