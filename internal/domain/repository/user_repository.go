package repository

import (
	"context"
	"errors"

	"github.com/yhensel/burgers-api/internal/domain/entity"
)

// ErrNotFound is returned by repositories when no record matches.
var ErrNotFound = errors.New("not found")

// Page is one slice of a paginated user listing.
type Page struct {
	Items   []*entity.User `json:"items"`
	Total   int64          `json:"total"`
	Page    int            `json:"current_page"`
	PerPage int            `json:"per_page"`
}

// LastPage returns the number of the last page, at least 1.
func (p *Page) LastPage() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 1
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

// UserRepository defines the persistence operations the user service consumes.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	// LockByID loads the user and holds a write lock on it until the surrounding
	// transaction ends. Outside WithinTx it behaves like FindByID.
	LockByID(ctx context.Context, id string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, id string) error
	Paginate(ctx context.Context, page, size int) (*Page, error)
	// Search matches term against name or email, substring and case-insensitive.
	Search(ctx context.Context, term string, page, size int) (*Page, error)
	// WithinTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx UserRepository) error) error
}
