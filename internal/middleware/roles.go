package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ticketdesk/internal/authz"
	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/models"
)

// RequireAction asks authorizer whether the caller's token role may perform an
// action that is not scoped to a single resource, and aborts with the
// engine's Forbidden error otherwise. It must run after AuthMiddleware.
func RequireAction(authorizer authz.Authorizer, action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get(UserIDKey)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}
		role, _ := c.Get(RoleKey)

		caller := authz.Principal{}
		caller.UserID, _ = userID.(uint)
		caller.Role, _ = role.(models.Role)

		if err := authorizer.Authorize(caller, action, nil); err != nil {
			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				appErr = apperrors.ErrForbidden
			}
			abortWithError(c, appErr)
			return
		}
		c.Next()
	}
}
