package router

import (
	"github.com/yhensel/burgers-api/internal/container"
	handlers "github.com/yhensel/burgers-api/internal/interface/http"
	"github.com/yhensel/burgers-api/internal/interface/middleware"
	"github.com/yhensel/burgers-api/internal/router/modules"
)

// InitModules builds handlers from the container and registers every module.
// metrics may be nil, in which case mutations are not counted and /debug/metrics is absent.
func InitModules(r *Registry, c *container.Container, metrics *middleware.Metrics) {
	var observer handlers.MutationObserver
	if metrics != nil {
		observer = metrics
	}
	users := handlers.NewUserHandler(c.UserService(), c.Logger, observer)
	clients := c.ClientService()
	tokens := handlers.NewTokenHandler(clients, c.Logger)
	limiter := c.RateLimitStore()
	perMin := c.Config.RateLimitPerMinute

	r.Add(modules.NewAuthModule(users, tokens, clients, limiter, perMin))
	r.Add(modules.NewUserModule(users, middleware.NewJWTAuthenticator(c.JWT), limiter, perMin))
	if metrics != nil {
		r.Add(modules.NewDebugModule(metrics.Handler()))
	}
}
