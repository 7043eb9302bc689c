package middleware

import (
	"context"

	"github.com/yhensel/burgers-api/pkg/helpers"
)

// JWTAuthenticator accepts access tokens signed by the given manager.
type JWTAuthenticator struct {
	JWT *helpers.JWTManager
}

func NewJWTAuthenticator(jwt *helpers.JWTManager) *JWTAuthenticator {
	return &JWTAuthenticator{JWT: jwt}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*Principal, error) {
	claims, err := a.JWT.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &Principal{UserID: claims.UserID, ClientID: claims.ClientID}, nil
}
