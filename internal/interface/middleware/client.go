package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yhensel/burgers-api/internal/domain/entity"
)

// ClientVerifier checks API client credentials.
type ClientVerifier interface {
	VerifyClient(ctx context.Context, clientID, secret string) (*entity.Client, error)
}

type clientFields struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

const maxPeekBody = 1 << 20

// ClientCredentials admits requests carrying valid client_id/client_secret,
// taken from HTTP basic auth or the JSON body. The body is restored for the handler.
func ClientCredentials(v ClientVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, secret, ok := c.Request.BasicAuth()
		if !ok && c.Request.Body != nil {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody))
			if err != nil {
				unauthorized(c)
				return
			}
			_ = c.Request.Body.Close()
			c.Request.Body = io.NopCloser(bytes.NewReader(body))

			var f clientFields
			if json.Unmarshal(body, &f) == nil {
				id, secret = f.ClientID, f.ClientSecret
			}
		}
		client, err := v.VerifyClient(c.Request.Context(), id, secret)
		if err != nil {
			unauthorized(c)
			return
		}
		c.Set(CtxClientIDKey, client.ID)
		c.Next()
	}
}
