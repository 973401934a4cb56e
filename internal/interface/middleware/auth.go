package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	userapp "github.com/taskhub/account-api/internal/application"
	"github.com/taskhub/account-api/internal/domain/entity"
	"github.com/taskhub/account-api/pkg/response"
	"github.com/taskhub/account-api/pkg/tokens"
)

const (
	CtxUserKey  = "authUser"
	CtxTokenKey = "authToken"
)

// User returns the authenticated user set by Auth.
func User(c *gin.Context) *entity.User {
	u, _ := c.Get(CtxUserKey)
	user, _ := u.(*entity.User)
	return user
}

// Token returns the raw bearer token set by Auth.
func Token(c *gin.Context) string {
	return c.GetString(CtxTokenKey)
}

// Auth resolves the Authorization bearer token to a user. A valid signature
// alone is not enough: the exact token string must still be present in the
// user's session set, so revoked tokens are rejected even before expiry.
// On success the user and raw token are stored in the request context.
func Auth(svc *userapp.Service, tm *tokens.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			unauthenticated(c)
			return
		}

		userID, err := tm.Verify(raw)
		if err != nil {
			unauthenticated(c)
			return
		}

		u, err := svc.GetByID(c.Request.Context(), userID)
		if err != nil {
			// A vanished user is an auth failure; a storage failure is not.
			if errors.Is(err, userapp.ErrUserNotFound) {
				unauthenticated(c)
				return
			}
			response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
			c.Abort()
			return
		}
		if !u.HasSessionToken(raw) {
			unauthenticated(c)
			return
		}

		c.Set(CtxUserKey, u)
		c.Set(CtxTokenKey, raw)
		c.Next()
	}
}

func unauthenticated(c *gin.Context) {
	response.Error[any](c, http.StatusUnauthorized, "please authenticate", nil)
	c.Abort()
}
