package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/internal/domain/entity"
	repo "github.com/yhensel/burgers-api/internal/domain/repository"
	"github.com/yhensel/burgers-api/pkg/helpers"
	"github.com/yhensel/burgers-api/pkg/validation"
)

// ClientService checks API client credentials and runs the password grant.
type ClientService struct {
	Clients repo.ClientRepository
	Users   repo.UserRepository
	Hasher  Hasher
	Tokens  TokenIssuer
	Logger  *logrus.Logger

	validate *validator.Validate
}

func NewClientService(clients repo.ClientRepository, users repo.UserRepository, hasher Hasher, tokens TokenIssuer, logger *logrus.Logger) *ClientService {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &ClientService{
		Clients:  clients,
		Users:    users,
		Hasher:   hasher,
		Tokens:   tokens,
		Logger:   logger,
		validate: validation.New(),
	}
}

// VerifyClient returns the client when id and secret match a non-revoked client.
func (s *ClientService) VerifyClient(ctx context.Context, clientID, secret string) (*entity.Client, error) {
	if clientID == "" || secret == "" {
		return nil, ErrInvalidClient
	}
	c, err := s.Clients.FindByID(ctx, clientID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Logger.WithError(err).WithField("client_id", clientID).Error("load client failed")
		}
		return nil, ErrInvalidClient
	}
	if c.Revoked || !s.Hasher.Verify(secret, c.Secret) {
		return nil, ErrInvalidClient
	}
	return c, nil
}

type PasswordGrantInput struct {
	GrantType    string `json:"grant_type" form:"grant_type" validate:"required"`
	ClientID     string `json:"client_id" form:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" form:"client_secret" validate:"required"`
	Username     string `json:"username" form:"username" validate:"required,email"`
	Password     string `json:"password" form:"password" validate:"required"`
}

type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PasswordGrant exchanges user credentials for a bearer access token.
func (s *ClientService) PasswordGrant(ctx context.Context, in PasswordGrantInput) (*AccessToken, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Fields: validation.ToDetails(err)}
	}
	if in.GrantType != "password" {
		return nil, ErrUnsupportedGrant
	}
	client, err := s.VerifyClient(ctx, in.ClientID, in.ClientSecret)
	if err != nil {
		return nil, err
	}
	if !client.PasswordClient {
		return nil, ErrInvalidClient
	}

	u, err := s.Users.FindByEmail(ctx, in.Username)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.Logger.WithError(err).Error("load user for grant failed")
		}
		return nil, ErrInvalidCredentials
	}
	if !s.Hasher.Verify(in.Password, u.Password) {
		return nil, ErrInvalidCredentials
	}

	tok, exp, err := s.Tokens.GenerateAccessToken(u.ID, client.ID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return nil, err
	}
	return &AccessToken{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
	}, nil
}
