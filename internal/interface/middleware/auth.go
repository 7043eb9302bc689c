package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserIDKey   = "userID"
	CtxClientIDKey = "clientID"
)

// Principal is the identity a bearer token resolves to.
type Principal struct {
	UserID   string
	ClientID string
}

// Authenticator resolves a bearer token to a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// Auth requires a valid "Authorization: Bearer <token>" header. Failures get a
// plain text 401; on success the user id is stored under CtxUserIDKey.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}
		p, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil || p == nil || p.UserID == "" {
			unauthorized(c)
			return
		}
		c.Set(CtxUserIDKey, p.UserID)
		if p.ClientID != "" {
			c.Set(CtxClientIDKey, p.ClientID)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.String(http.StatusUnauthorized, "Unauthorized.")
	c.Abort()
}
