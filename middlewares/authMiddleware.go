package middlewares

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"civicsync/apperr"
	"civicsync/models"
	"civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ContextUserID = "user_id"
	ContextClaims = "claims"

	// TokenCookie carries the session token for browser clients.
	TokenCookie = "auth_token"
)

type TokenParser interface {
	ParseToken(tokenString string) (*utils.Claims, error)
}

// AuthMiddleware requires a valid, unrevoked session token, taken from the
// Authorization header or the auth_token cookie.
func AuthMiddleware(tokens TokenParser, denylist TokenDenylist, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			abortUnauthorized(c, "No authorization token provided")
			return
		}

		claims, err := tokens.ParseToken(tokenString)
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			abortUnauthorized(c, "Invalid authorization token")
			return
		}

		if denylist != nil {
			revoked, err := denylist.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Error("denylist lookup failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Something went wrong"})
				return
			}
			if revoked {
				abortUnauthorized(c, "Session has been logged out")
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !slices.Contains(roles, claims.Role) {
			AbortWithError(c, apperr.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware.
func ClaimsFrom(c *gin.Context) (*utils.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok && claims != nil
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// LoginRedirect is where unauthenticated browsers are sent, remembering the
// page they asked for.
func LoginRedirect(from string) string {
	return "/login?from=" + url.QueryEscape(from)
}

func abortUnauthorized(c *gin.Context, msg string) {
	AbortWithError(c, apperr.AuthenticationRequired("%s", msg))
}
