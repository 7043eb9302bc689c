package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/pkg/helpers"
)

type TokenIssuer interface {
	PasswordGrant(ctx context.Context, in application.PasswordGrantInput) (*application.AccessToken, error)
}

// TokenHandler serves the OAuth2 password grant. Bodies follow RFC 6749
// rather than the API envelope.
type TokenHandler struct {
	Svc    TokenIssuer
	Logger *logrus.Logger
}

func NewTokenHandler(svc TokenIssuer, logger *logrus.Logger) *TokenHandler {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &TokenHandler{Svc: svc, Logger: logger}
}

func oauthError(c *gin.Context, status int, code, description string) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, gin.H{"error": code, "error_description": description})
}

func (h *TokenHandler) Issue(c *gin.Context) {
	var in application.PasswordGrantInput
	if err := c.ShouldBind(&in); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	tok, err := h.Svc.PasswordGrant(c.Request.Context(), in)
	var ve *application.ValidationError
	switch {
	case err == nil:
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, tok)
	case errors.As(err, &ve):
		oauthError(c, http.StatusBadRequest, "invalid_request", ve.Error())
	case errors.Is(err, application.ErrUnsupportedGrant):
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type", err.Error())
	case errors.Is(err, application.ErrInvalidClient):
		oauthError(c, http.StatusUnauthorized, "invalid_client", err.Error())
	case errors.Is(err, application.ErrInvalidCredentials):
		oauthError(c, http.StatusBadRequest, "invalid_grant", err.Error())
	default:
		h.Logger.WithError(err).Error("password grant failed")
		oauthError(c, http.StatusInternalServerError, "server_error", "token could not be issued")
	}
}
