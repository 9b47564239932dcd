package middleware

import (
	"github.com/gin-gonic/gin"

	"nebula-miniapp/internal/common/errors"
)

// RequireIdentity rejects guests with 403 and requests that never went
// through TelegramIdentity with 401.
func RequireIdentity(operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			abortWith(c, errors.NewUnauthorizedError("no identity resolved for "+operation))
			return
		}
		if id.IsGuest() {
			abortWith(c, errors.NewGuestIdentityError(operation))
			return
		}
		c.Next()
	}
}

// SessionToucher is notified of every identified request.
type SessionToucher interface {
	Touch(userID string)
}

// TouchSession keeps the caller's sync loop from being reaped as idle.
func TouchSession(sessions SessionToucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if id, ok := GetIdentity(c); ok && !id.IsGuest() {
			sessions.Touch(id.UserID)
		}
	}
}
