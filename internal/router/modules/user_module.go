package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/yhensel/burgers-api/internal/interface/http"
	"github.com/yhensel/burgers-api/internal/interface/middleware"
)

// UserModule wires the bearer-protected user resource.
// GET /users, GET /users/:id, PUT /users/:id (and /users/:id/update), DELETE /users/:id
type UserModule struct {
	Handler *handlers.UserHandler
	Authn   middleware.Authenticator
	Limiter redis.Cmdable
	PerMin  int
}

func NewUserModule(h *handlers.UserHandler, authn middleware.Authenticator, limiter redis.Cmdable, perMin int) *UserModule {
	return &UserModule{Handler: h, Authn: authn, Limiter: limiter, PerMin: perMin}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.Use(
		middleware.Auth(m.Authn),
		middleware.RateLimit(m.Limiter, m.PerMin, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		users.GET("", m.Handler.Index)
		users.GET("/:id", m.Handler.Show)
		users.PUT("/:id", m.Handler.Update)
		users.PUT("/:id/update", m.Handler.Update)
		users.DELETE("/:id", m.Handler.Destroy)
	}
}
