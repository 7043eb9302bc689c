package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yhensel/burgers-api/internal/domain/entity"
	"github.com/yhensel/burgers-api/internal/domain/repository"
)

const userColumns = `id::text, name, email, password_hash, created_at, updated_at`

type UserRepository struct {
	db   DB
	pool Pool // nil when bound to a transaction
}

func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{db: pool, pool: pool}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// validID rejects ids that can never match a uuid primary key.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return u, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, err
}

func (r *UserRepository) LockByID(ctx context.Context, id string) (*entity.User, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at, updated_at
	`, u.Name, u.Email, u.Password)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	if !validID(u.ID) {
		return repository.ErrNotFound
	}
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, updated_at = now()
		WHERE id = $4
		RETURNING updated_at
	`, u.Name, u.Email, u.Password, u.ID)
	if err := row.Scan(&u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Paginate(ctx context.Context, page, size int) (*repository.Page, error) {
	return r.page(ctx, "", nil, page, size)
}

func (r *UserRepository) Search(ctx context.Context, term string, page, size int) (*repository.Page, error) {
	return r.page(ctx, `WHERE name ILIKE $1 OR email ILIKE $1`, []any{"%" + escapeLike(term) + "%"}, page, size)
}

func (r *UserRepository) page(ctx context.Context, where string, args []any, page, size int) (*repository.Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	page = min(page, math.MaxInt/size)
	p := &repository.Page{Items: []*entity.User{}, Page: page, PerPage: size}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users `+where, args...).Scan(&p.Total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	offset := (page - 1) * size
	if p.Total == 0 || int64(offset) >= p.Total {
		return p, nil
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at, id LIMIT $%d OFFSET $%d`, userColumns, where, n+1, n+2)
	rows, err := r.db.Query(ctx, q, append(args, size, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		p.Items = append(p.Items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	return p, nil
}

// WithinTx runs fn in a transaction. Calls on a repository already bound to a
// transaction join it.
func (r *UserRepository) WithinTx(ctx context.Context, fn func(tx repository.UserRepository) error) (err error) {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(&UserRepository{db: tx}); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

var _ repository.UserRepository = (*UserRepository)(nil)
