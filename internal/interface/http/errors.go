package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/pkg/response"
)

// Outcome labels reported to the mutation observer.
const (
	outcomeOK                 = "ok"
	outcomeValidation         = "validation"
	outcomeNotFound           = "not_found"
	outcomeWrongPassword      = "wrong_password"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeStoreError         = "store_error"
	outcomeInternal           = "internal"
)

// MutationObserver is notified of every create/update/delete attempt.
type MutationObserver interface {
	ObserveMutation(op, outcome string)
}

// writeServiceError maps application errors to HTTP responses and returns the outcome label.
func writeServiceError(c *gin.Context, logger *logrus.Logger, err error) string {
	var ve *application.ValidationError
	var pe *application.PersistenceError
	switch {
	case errors.As(err, &ve):
		response.Error[any](c, http.StatusBadRequest, "validation failed", ve.Fields)
		return outcomeValidation
	case errors.Is(err, application.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, err.Error(), nil)
		return outcomeNotFound
	case errors.Is(err, application.ErrWrongPassword):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
		return outcomeWrongPassword
	case errors.Is(err, application.ErrInvalidCredentials), errors.Is(err, application.ErrInvalidClient):
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
		return outcomeInvalidCredentials
	case errors.As(err, &pe):
		status := http.StatusBadRequest
		if pe.IsRead() {
			status = http.StatusInternalServerError
		}
		response.Error[any](c, status, pe.Error(), nil)
		return outcomeStoreError
	default:
		logger.WithError(err).WithField("path", c.FullPath()).Error("unhandled service error")
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
		return outcomeInternal
	}
}
