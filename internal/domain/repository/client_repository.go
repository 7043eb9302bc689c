package repository

import (
	"context"

	"github.com/yhensel/burgers-api/internal/domain/entity"
)

// ClientRepository reads API clients.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Client, error)
}
