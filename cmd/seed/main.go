package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/yhensel/burgers-api/config"
	"github.com/yhensel/burgers-api/internal/domain/entity"
	"github.com/yhensel/burgers-api/internal/domain/repository"
	pginfra "github.com/yhensel/burgers-api/internal/infrastructure/postgres"
	"github.com/yhensel/burgers-api/pkg/helpers"
)

// seeder creates the demo account, filler accounts and a password-grant client.
type seeder struct {
	users   repository.UserRepository
	clients *pginfra.ClientRepository
	hasher  helpers.BcryptHasher
}

// ensureUser creates the user unless the email is already taken.
func (s *seeder) ensureUser(ctx context.Context, name, email, password string) (*entity.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, err
	}
	u := &entity.User{Name: name, Email: email, Password: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// ensureClient creates the password-grant client unless one with that name exists.
// An existing client keeps its secret.
func (s *seeder) ensureClient(ctx context.Context, name, secret string) (*entity.Client, bool, error) {
	existing, err := s.clients.FindPasswordClientByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, false, err
	}
	c := &entity.Client{Name: name, Secret: hash, PasswordClient: true}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *seeder) fillers(ctx context.Context, count int, password string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 1; i <= count; i++ {
		i := i
		g.Go(func() error {
			_, _, err := s.ensureUser(gctx, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i), password)
			return err
		})
	}
	return g.Wait()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	s := &seeder{
		users:   pginfra.NewUserRepository(pool),
		clients: pginfra.NewClientRepository(pool),
		hasher:  helpers.NewBcryptHasher(cfg.BcryptCost),
	}

	u, created, err := s.ensureUser(ctx, cfg.SeedUserName, cfg.SeedUserEmail, cfg.SeedUserPassword)
	if err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}
	if created {
		fmt.Printf("seeded user: id=%s email=%s password=%s\n", u.ID, u.Email, cfg.SeedUserPassword)
	} else {
		fmt.Printf("user exists: id=%s email=%s\n", u.ID, u.Email)
	}

	if err := s.fillers(ctx, cfg.SeedUserCount, cfg.SeedUserPassword); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}
	fmt.Printf("seeded up to %d filler users\n", cfg.SeedUserCount)

	client, created, err := s.ensureClient(ctx, cfg.SeedClientName, cfg.SeedClientSecret)
	if err != nil {
		log.Fatalf("failed to seed client: %v", err)
	}
	if created {
		fmt.Printf("seeded password grant client: client_id=%s client_secret=%s\n", client.ID, cfg.SeedClientSecret)
	} else {
		fmt.Printf("password grant client exists: client_id=%s\n", client.ID)
	}
}
