package middleware

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/models"
	"backend/internal/repository"
	"backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserIDKey is the context key for the authenticated subject id.
	UserIDKey = "user_id"
	// CurrentUserKey is the context key for the freshly loaded user record,
	// set by RequireAdmin.
	CurrentUserKey = "current_user"
)

// RequireAuth validates the bearer access token and stores the subject id in
// the request context. The four validation outcomes map to distinct
// responses; no role check happens here.
func RequireAuth(tokens *service.TokenService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := tokens.Validate(bearerToken(c), service.TokenTypeAccess)
		if err != nil {
			abortWithTokenError(c, err, logger)
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// RequireAdmin re-fetches the user behind the validated token and requires
// the admin role. Re-reading the record means role changes and deletions
// take effect on the next request even though the token stays valid until
// expiry. Must run after RequireAuth.
func RequireAdmin(repo repository.UserRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.MustGet(UserIDKey).(int64)

		user, err := repo.FindByID(userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				// Stale token for a deleted account.
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "user no longer exists"})
				return
			}
			logger.Error("Failed to load user for authorization", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "server error"})
			return
		}

		if user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin privileges required"})
			return
		}

		c.Set(CurrentUserKey, user)
		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header, returning
// the empty string when none is presented.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		// A header that is present but not Bearer-shaped is malformed, not
		// missing; return it so validation rejects it as such.
		return authHeader
	}
	return parts[1]
}

func abortWithTokenError(c *gin.Context, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, service.ErrTokenMissing):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication token required"})
	case errors.Is(err, service.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication token expired"})
	case errors.Is(err, service.ErrTokenRevoked):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication token revoked"})
	default:
		logger.Debug("Rejected invalid token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "authentication token invalid"})
	}
}
