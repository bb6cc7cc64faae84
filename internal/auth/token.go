// Package auth gates connection admission. A credential token is
// verified before the WebSocket upgrade completes; no hub state exists
// for a connection that fails here.
package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/studyhive/realtime/internal/domain"
)

const principalKey = "principal"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the identity resolved from a verified credential.
type Principal struct {
	ID   domain.UserID
	Name string
}

// Authenticator verifies HMAC-signed access tokens issued by the
// identity service. The hub shares the signing secret with it.
type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Verify checks signature and expiry and resolves the subject claim.
// The optional name claim carries the display name.
func (a *Authenticator) Verify(token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	p := Principal{ID: domain.UserID(sub)}
	if name, ok := claims["name"].(string); ok {
		p.Name = name
	}
	return p, nil
}

// Middleware admits only requests carrying a valid token query
// parameter and stores the resolved principal in the request context.
// Rejection happens before any upgrade, so unauthenticated clients
// never reach the hub.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := a.Verify(c.Query("token"))
		if err != nil {
			log.Warn().Err(err).Str("module", "auth").Str("remote", c.ClientIP()).Msg("connection refused")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// FromContext returns the principal stored by Middleware.
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
