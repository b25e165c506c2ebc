package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "ticketdesk/internal/errors"
	"ticketdesk/internal/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error. An
// AppError is written as-is; its internal cause only goes to the log. Any
// other error becomes the generic internal error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := toAppError(c.Errors.Last().Err)
		if appErr.Internal != nil || appErr.StatusCode >= 500 {
			logger.Get().Errorw("request failed",
				"code", appErr.Code,
				"internal", appErr.Internal,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(requestIDKey),
			)
		}
		c.JSON(appErr.StatusCode, appErr)
	}
}

func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}
