package entity

import "time"

// Client is an API client allowed to call the public registration and token endpoints.
// Secret is stored as a bcrypt hash.
type Client struct {
	ID             string
	Name           string
	Secret         string
	PasswordClient bool
	Revoked        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
