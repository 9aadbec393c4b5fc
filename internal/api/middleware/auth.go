// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any gin.HandlerFunc. Each one runs, optionally calls
// c.Next() to pass control down the chain, and can call c.Abort() to stop
// it. Middleware is applied with .Use() on a router or route group.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys for the authenticated actor.
const (
	ActorIDKey = "actor_id"
	RoleKey    = "role"

	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleFarmer = "farmer"
)

var knownRoles = []string{RoleBuyer, RoleSeller, RoleFarmer}

// MockAuth extracts the actor from the Authorization header.
// Format: "Bearer <role>-<id>", e.g. "Bearer seller-42". The whole token is
// the actor ID; the prefix before the first dash is the role.
//
// A real deployment would verify a signed token instead; the engine only
// needs an actor ID and a role.
//
// Go Learning Note — c.Abort():
// c.Abort() prevents subsequent handlers in the chain from running. Always
// pair an error response with c.Abort() in middleware.
func MockAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid authorization format"})
			c.Abort()
			return
		}

		actorID := strings.TrimSpace(parts[1])
		role := roleOf(actorID)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid actor id format"})
			c.Abort()
			return
		}

		c.Set(ActorIDKey, actorID)
		c.Set(RoleKey, role)
		c.Next()
	}
}

func roleOf(actorID string) string {
	for _, r := range knownRoles {
		if strings.HasPrefix(actorID, r+"-") && len(actorID) > len(r)+1 {
			return r
		}
	}
	return ""
}

// GetActorID retrieves the actor ID set by MockAuth.
func GetActorID(c *gin.Context) string {
	return c.GetString(ActorIDKey)
}

// GetRole retrieves the role ("buyer", "seller" or "farmer") set by MockAuth.
func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}
