package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notekeeper/notekeeper/internal/models"
	"github.com/notekeeper/notekeeper/internal/sessions"
	"github.com/notekeeper/notekeeper/pkg/logger"
)

// Context keys set by Authenticate.
const (
	ActorKey  = "actor"
	ClaimsKey = "claims"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// SessionResolver maps a session cookie value to its actor, or nil when the
// session is unknown or expired.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (*models.Actor, error)
}

// AuthConfig wires Authenticate.
type AuthConfig struct {
	Sessions   SessionResolver
	CookieName string
	Verifiers  []Verifier
}

// Authenticate resolves the request actor from a Bearer token (tried against
// each verifier in order, after the blacklist) or from the session cookie.
// It never aborts: unresolved requests continue as anonymous.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := BearerToken(c); ok {
			if actor, claims := verifyBearer(c.Request.Context(), cfg.Verifiers, raw); actor != nil {
				c.Set(ClaimsKey, claims)
				c.Set(ActorKey, actor)
				c.Next()
				return
			}
		}
		if cfg.Sessions != nil && cfg.CookieName != "" {
			if sid, err := c.Cookie(cfg.CookieName); err == nil && sid != "" {
				actor, err := cfg.Sessions.Resolve(c.Request.Context(), sid)
				if err != nil {
					logger.Warnf("session lookup failed: %v", err)
				} else if actor != nil {
					c.Set(ActorKey, actor)
				}
			}
		}
		c.Next()
	}
}

func verifyBearer(ctx context.Context, verifiers []Verifier, raw string) (*models.Actor, map[string]interface{}) {
	black, err := sessions.IsAccessTokenBlacklisted(ctx, raw)
	if err != nil {
		logger.Warnf("blacklist check failed: %v", err)
		return nil, nil
	}
	if black {
		return nil, nil
	}
	for _, ver := range verifiers {
		tok, err := ver.Verify(ctx, raw)
		if err != nil {
			logger.Debugf("bearer token rejected: %v", err)
			continue
		}
		var claims map[string]interface{}
		if err := tok.Claims(&claims); err != nil {
			continue
		}
		if actor := ActorFromClaims(claims); actor != nil {
			return actor, claims
		}
	}
	return nil, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", false
	}
	var token string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
		return "", false
	}
	return token, true
}

// ActorFromClaims builds an actor from token claims; "sub" is required.
func ActorFromClaims(claims map[string]interface{}) *models.Actor {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	a := &models.Actor{ID: sub}
	for _, k := range []string{"preferred_username", "username", "name"} {
		if v, ok := claims[k].(string); ok && v != "" {
			a.Username = v
			break
		}
	}
	return a
}

// ActorFrom returns the actor set by Authenticate, or nil for anonymous requests.
func ActorFrom(c *gin.Context) *models.Actor {
	v, ok := c.Get(ActorKey)
	if !ok {
		return nil
	}
	a, _ := v.(*models.Actor)
	return a
}

// RequireAuth rejects anonymous API requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}
