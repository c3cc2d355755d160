package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pedidoflow/auth"
)

const (
	ctxActorID   = "pedidoflow_actor_id"
	ctxActorRole = "pedidoflow_actor_role"
)

// TokenVerifier validates a bearer credential and yields the acting identity.
type TokenVerifier interface {
	VerifyToken(token string) (string, auth.Role, error)
}

// RequireAuth extracts and verifies the bearer token, storing the resolved
// actor id and role on the request context. Handlers then pass the actor id
// explicitly into the services; nothing below this layer reads ambient state.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			return
		}
		userID, role, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Set(ctxActorID, userID)
		c.Set(ctxActorRole, role)
		c.Next()
	}
}

// RequireRole gates a route to one role. Must run after RequireAuth.
func RequireRole(role auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	id, _ := c.Get(ctxActorID)
	s, _ := id.(string)
	return s
}

func actorRole(c *gin.Context) auth.Role {
	r, _ := c.Get(ctxActorRole)
	role, _ := r.(auth.Role)
	return role
}

// RequestLogger emits one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
