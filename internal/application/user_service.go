package application

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/internal/domain/entity"
	repo "github.com/yhensel/burgers-api/internal/domain/repository"
	"github.com/yhensel/burgers-api/pkg/helpers"
	"github.com/yhensel/burgers-api/pkg/validation"
)

// DefaultPageSize is the fixed size of user listings.
const DefaultPageSize = 9

// maxPage keeps the listing offset within an int.
const maxPage = math.MaxInt / DefaultPageSize

// Service implements listing and the user mutation protocol.
type Service struct {
	Repo   repo.UserRepository
	Hasher Hasher
	Logger *logrus.Logger
	Index  SearchIndex
	Events EventPublisher
	Cache  UserCache

	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the user service. index, events and cache may be nil.
func NewService(repo repo.UserRepository, hasher Hasher, logger *logrus.Logger, index SearchIndex, events EventPublisher, cache UserCache) *Service {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	v := validation.New()
	v.RegisterStructValidation(updateConfirmation, UpdateUserInput{})
	return &Service{
		Repo:     repo,
		Hasher:   hasher,
		Logger:   logger,
		Index:    index,
		Events:   events,
		Cache:    cache,
		validate: v,
		now:      time.Now,
	}
}

type ListInput struct {
	Search string
	Page   int
}

type CreateUserInput struct {
	Name            string `json:"name" validate:"required,username"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// UpdateUserInput is a partial update. Nil fields keep their current value.
// Password is the current plaintext password and is always required.
type UpdateUserInput struct {
	Name            *string `json:"name" validate:"omitempty,username"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Password        string  `json:"password" validate:"required"`
	NewPassword     *string `json:"new_password" validate:"omitempty,max=72"`
	ConfirmPassword *string `json:"confirm_password" validate:"required_with=NewPassword"`
}

// normalize drops blank optional fields so they count as absent.
func (in *UpdateUserInput) normalize() {
	in.Name = trimmedOrNil(in.Name)
	in.Email = trimmedOrNil(in.Email)
	if in.NewPassword != nil && *in.NewPassword == "" {
		in.NewPassword = nil
	}
	if in.ConfirmPassword != nil && *in.ConfirmPassword == "" {
		in.ConfirmPassword = nil
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// updateConfirmation checks confirm_password against new_password.
func updateConfirmation(sl validator.StructLevel) {
	in := sl.Current().Interface().(UpdateUserInput)
	if in.NewPassword != nil && in.ConfirmPassword != nil && *in.NewPassword != *in.ConfirmPassword {
		sl.ReportError(in.ConfirmPassword, "confirm_password", "ConfirmPassword", "eqfield", "new_password")
	}
}

type DeleteUserInput struct {
	Password string `json:"password" validate:"required"`
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return &ValidationError{Fields: validation.ToDetails(err)}
	}
	return nil
}

// List returns one page of users, filtered by name or email when a search term is given.
func (s *Service) List(ctx context.Context, in ListInput) (*repo.Page, error) {
	page := min(max(in.Page, 1), maxPage)
	var (
		p   *repo.Page
		err error
	)
	if term := strings.TrimSpace(in.Search); term != "" {
		p, err = s.Repo.Search(ctx, term, page, DefaultPageSize)
	} else {
		p, err = s.Repo.Paginate(ctx, page, DefaultPageSize)
	}
	if err != nil {
		s.Logger.WithError(err).WithField("search", in.Search).Error("list users failed")
		return nil, &PersistenceError{Op: OpList, Err: err}
	}
	return p, nil
}

// Show returns a single user.
func (s *Service) Show(ctx context.Context, id string) (*entity.User, error) {
	fill := false
	var gen int64
	if s.Cache != nil {
		log := s.Logger.WithField("user_id", id)
		if u, ok, err := s.Cache.Get(ctx, id); err != nil {
			log.WithError(err).Warn("user cache read failed")
		} else if ok {
			return u, nil
		}
		// the generation must be read before the store
		if g, err := s.Cache.Generation(ctx, id); err != nil {
			log.WithError(err).Warn("user cache generation read failed")
		} else {
			gen, fill = g, true
		}
	}
	u, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		s.Logger.WithError(err).WithField("user_id", id).Error("load user failed")
		return nil, &PersistenceError{Op: OpShow, Err: err}
	}
	if fill {
		if err := s.Cache.Set(ctx, u, gen); err != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("user cache write failed")
		}
	}
	return u, nil
}

// Create registers a new user.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*entity.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		s.Logger.WithError(err).Error("hash password failed")
		return nil, &PersistenceError{Op: OpCreate, Err: err}
	}
	u := &entity.User{Name: in.Name, Email: in.Email, Password: hash}
	if err := s.Repo.Create(ctx, u); err != nil {
		s.Logger.WithError(err).WithField("email", in.Email).Error("create user failed")
		return nil, &PersistenceError{Op: OpCreate, Err: err}
	}
	s.Logger.WithField("user_id", u.ID).Info("user created")
	s.afterCommit(ctx, EventUserCreated, u, nil)
	return u, nil
}

// Update applies a partial update after verifying the current password.
// The read, password check and write happen under one row lock.
func (s *Service) Update(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	in.normalize()
	if err := s.check(in); err != nil {
		return nil, err
	}

	var (
		updated *entity.User
		changes []string
	)
	err := s.Repo.WithinTx(ctx, func(tx repo.UserRepository) error {
		u, err := tx.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(OpUpdate, err)
		}
		if !s.Hasher.Verify(in.Password, u.Password) {
			return ErrWrongPassword
		}
		changes, err = s.merge(ctx, tx, u, in)
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, u); err != nil {
			return notFoundOr(OpUpdate, err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.fail(OpUpdate, id, err)
	}

	s.Logger.WithFields(logrus.Fields{"user_id": id, "changes": changes}).Info("user updated")
	s.afterCommit(ctx, EventUserUpdated, updated, changes)
	return updated, nil
}

// merge copies the present fields of in onto u and returns the names of changed fields.
// An email already owned by another user is skipped without error.
func (s *Service) merge(ctx context.Context, tx repo.UserRepository, u *entity.User, in UpdateUserInput) ([]string, error) {
	var changes []string
	if in.Name != nil && *in.Name != u.Name {
		u.Name = *in.Name
		changes = append(changes, "name")
	}
	if in.Email != nil && *in.Email != u.Email {
		owner, err := tx.FindByEmail(ctx, *in.Email)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			u.Email = *in.Email
			changes = append(changes, "email")
		case err != nil:
			return nil, &PersistenceError{Op: OpUpdate, Err: err}
		case owner.ID == u.ID:
			u.Email = *in.Email
			changes = append(changes, "email")
		default:
			s.Logger.WithField("user_id", u.ID).Debug("email owned by another user, keeping current")
		}
	}
	if in.NewPassword != nil {
		hash, err := s.Hasher.Hash(*in.NewPassword)
		if err != nil {
			return nil, &PersistenceError{Op: OpUpdate, Err: err}
		}
		u.Password = hash
		changes = append(changes, "password")
	}
	return changes, nil
}

// Delete removes a user after verifying its password and returns the last known record.
func (s *Service) Delete(ctx context.Context, id string, in DeleteUserInput) (*entity.User, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	var deleted *entity.User
	err := s.Repo.WithinTx(ctx, func(tx repo.UserRepository) error {
		u, err := tx.LockByID(ctx, id)
		if err != nil {
			return notFoundOr(OpDelete, err)
		}
		if !s.Hasher.Verify(in.Password, u.Password) {
			return ErrInvalidCredentials
		}
		if err := tx.Delete(ctx, id); err != nil {
			return notFoundOr(OpDelete, err)
		}
		deleted = u
		return nil
	})
	if err != nil {
		return nil, s.fail(OpDelete, id, err)
	}

	s.Logger.WithField("user_id", id).Info("user deleted")
	s.afterCommit(ctx, EventUserDeleted, deleted, nil)
	return deleted, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return &PersistenceError{Op: op, Err: err}
}

// fail logs err and makes sure the caller only sees a typed error.
func (s *Service) fail(op, id string, err error) error {
	entry := s.Logger.WithError(err).WithFields(logrus.Fields{"user_id": id, "op": op})
	if domainError(err) {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			entry.Error("user store failed")
		} else {
			entry.Debug("user mutation rejected")
		}
		return err
	}
	entry.Error("user transaction failed")
	return &PersistenceError{Op: op, Err: err}
}

// afterCommit refreshes the cache and search projection and publishes the event.
// Failures are logged; the committed change stands.
func (s *Service) afterCommit(ctx context.Context, typ string, u *entity.User, changes []string) {
	ctx = context.WithoutCancel(ctx)
	log := s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "event": typ})

	if s.Cache != nil && typ != EventUserCreated {
		if err := s.Cache.Delete(ctx, u.ID); err != nil {
			log.WithError(err).Warn("user cache invalidation failed")
		}
	}
	if s.Index != nil {
		var err error
		if typ == EventUserDeleted {
			err = s.Index.DeleteUser(ctx, u.ID)
		} else {
			err = s.Index.IndexUser(ctx, u)
		}
		if err != nil {
			log.WithError(err).Warn("search index sync failed")
		}
	}
	if s.Events != nil {
		ev := UserEvent{
			ID:         uuid.NewString(),
			Type:       typ,
			UserID:     u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Changes:    changes,
			OccurredAt: s.now().UTC(),
		}
		if err := s.Events.PublishUserEvent(ctx, ev); err != nil {
			log.WithError(err).Warn("publish user event failed")
		}
	}
}
