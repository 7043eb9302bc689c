package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yhensel/burgers-api/internal/domain/entity"
	"github.com/yhensel/burgers-api/internal/domain/repository"
)

type ClientRepository struct {
	db DB
}

func NewClientRepository(db DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id::text, name, secret, password_client, revoked, created_at, updated_at`

func scanClient(row pgx.Row) (*entity.Client, error) {
	c := &entity.Client{}
	err := row.Scan(&c.ID, &c.Name, &c.Secret, &c.PasswordClient, &c.Revoked, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *ClientRepository) FindByID(ctx context.Context, id string) (*entity.Client, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	c, err := scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE id = $1`, id))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find client %s: %w", id, err)
	}
	return c, err
}

// FindPasswordClientByName returns the oldest non-revoked password client named name.
func (r *ClientRepository) FindPasswordClientByName(ctx context.Context, name string) (*entity.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM oauth_clients
		WHERE name = $1 AND password_client AND NOT revoked
		ORDER BY created_at
		LIMIT 1
	`, name))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find client %q: %w", name, err)
	}
	return c, err
}

// Create stores a client whose Secret is already hashed.
func (r *ClientRepository) Create(ctx context.Context, c *entity.Client) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO oauth_clients (name, secret, password_client, revoked)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at, updated_at
	`, c.Name, c.Secret, c.PasswordClient, c.Revoked).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

var _ repository.ClientRepository = (*ClientRepository)(nil)
