package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yhensel/burgers-api/internal/application"
	"github.com/yhensel/burgers-api/internal/domain/entity"
	repo "github.com/yhensel/burgers-api/internal/domain/repository"
	"github.com/yhensel/burgers-api/pkg/helpers"
	"github.com/yhensel/burgers-api/pkg/response"
	"github.com/yhensel/burgers-api/pkg/validation"
)

// UserService is the part of *application.Service the handler drives.
type UserService interface {
	List(ctx context.Context, in application.ListInput) (*repo.Page, error)
	Show(ctx context.Context, id string) (*entity.User, error)
	Create(ctx context.Context, in application.CreateUserInput) (*entity.User, error)
	Update(ctx context.Context, id string, in application.UpdateUserInput) (*entity.User, error)
	Delete(ctx context.Context, id string, in application.DeleteUserInput) (*entity.User, error)
}

type UserHandler struct {
	Svc     UserService
	Logger  *logrus.Logger
	Metrics MutationObserver
}

func NewUserHandler(svc UserService, logger *logrus.Logger, metrics MutationObserver) *UserHandler {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	return &UserHandler{Svc: svc, Logger: logger, Metrics: metrics}
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so that
// field validation reports what is missing.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return false
	}
	return true
}

func (h *UserHandler) observe(op, outcome string) {
	if h.Metrics != nil {
		h.Metrics.ObserveMutation(op, outcome)
	}
}

// Index lists users nine per page, optionally filtered by ?search=.
func (h *UserHandler) Index(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	p, err := h.Svc.List(c.Request.Context(), application.ListInput{Search: c.Query("search"), Page: page})
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, p.Items, "users", response.Pagination{
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       p.Total,
		LastPage:    p.LastPage(),
	})
}

func (h *UserHandler) Show(c *gin.Context) {
	u, err := h.Svc.Show(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user", nil)
}

func (h *UserHandler) Register(c *gin.Context) {
	var in application.CreateUserInput
	if !bindJSON(c, &in) {
		h.observe(application.OpCreate, outcomeValidation)
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		h.observe(application.OpCreate, writeServiceError(c, h.Logger, err))
		return
	}
	h.observe(application.OpCreate, outcomeOK)
	response.Success(c, http.StatusCreated, u, "user created", nil)
}

func (h *UserHandler) Update(c *gin.Context) {
	var in application.UpdateUserInput
	if !bindJSON(c, &in) {
		h.observe(application.OpUpdate, outcomeValidation)
		return
	}
	u, err := h.Svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.observe(application.OpUpdate, writeServiceError(c, h.Logger, err))
		return
	}
	h.observe(application.OpUpdate, outcomeOK)
	response.Success(c, http.StatusOK, u, "user updated", nil)
}

func (h *UserHandler) Destroy(c *gin.Context) {
	var in application.DeleteUserInput
	if !bindJSON(c, &in) {
		h.observe(application.OpDelete, outcomeValidation)
		return
	}
	u, err := h.Svc.Delete(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.observe(application.OpDelete, writeServiceError(c, h.Logger, err))
		return
	}
	h.observe(application.OpDelete, outcomeOK)
	response.Success(c, http.StatusOK, u, "user deleted", nil)
}
