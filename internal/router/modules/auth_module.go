package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/yhensel/burgers-api/internal/interface/http"
	"github.com/yhensel/burgers-api/internal/interface/middleware"
)

// AuthModule wires the client-authenticated public endpoints:
// POST /register and POST /oauth/token, both rate-limited per IP and path.
type AuthModule struct {
	Users   *handlers.UserHandler
	Tokens  *handlers.TokenHandler
	Clients middleware.ClientVerifier
	Limiter redis.Cmdable
	PerMin  int
}

func NewAuthModule(users *handlers.UserHandler, tokens *handlers.TokenHandler, clients middleware.ClientVerifier, limiter redis.Cmdable, perMin int) *AuthModule {
	return &AuthModule{Users: users, Tokens: tokens, Clients: clients, Limiter: limiter, PerMin: perMin}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	limit := middleware.RateLimit(m.Limiter, m.PerMin, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/register", limit, middleware.ClientCredentials(m.Clients), m.Users.Register)
	rg.POST("/oauth/token", limit, m.Tokens.Issue)
}
