package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tillcore/internal/core/apperror"
	"tillcore/internal/infrastructure/http/v1/dto"
	"tillcore/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		details := appErr.Details
		if appErr.Code == apperror.CodeInternal {
			details = map[string]any{"request_id": c.GetString("request_id")}
		}

		body := dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		}

		settleIdempotency(c, appErr.HTTPStatus, body)
		c.JSON(appErr.HTTPStatus, body)
	}
}

// settleIdempotency records a final error response for replay. Server-side
// failures release the key instead so the client may retry them.
func settleIdempotency(c *gin.Context, status int, body any) {
	key, store, ok := idempotencyFromGin(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var err error
	if status >= http.StatusInternalServerError {
		err = store.ReleaseKey(ctx, key)
	} else {
		err = store.FailKey(ctx, key, status, "application/json", body)
	}
	if err != nil {
		logger.Warn(ctx, "settle idempotency key", "key", key, "error", err)
	}
}
