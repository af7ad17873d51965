package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"dairyflow/internal/core/apperror"
	"dairyflow/pkg/logger"
)

// ErrorHandler renders the last error as {code, message, details}. Internal
// causes are logged and never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status := http.StatusInternalServerError
		var body gin.H
		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			status = appErr.HTTPStatus
			body = gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			body = gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": map[string]any{"request_id": c.GetString(ctxRequestID)},
			}
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}

// failIdempotency stores the error response for replay. Server errors release
// the key instead so the client may retry.
func failIdempotency(c *gin.Context, status int, body any) {
	key, store := idempotencyFrom(c)
	if store == nil {
		return
	}
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		if err := store.ReleaseKey(ctx, key); err != nil {
			logger.Warn(ctx, "release idempotency key", "key", key, "error", err)
		}
		return
	}
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"code":"` + apperror.CodeInternal + `"}`)
	}
	if err := store.FailKey(ctx, key, status, "application/json", raw); err != nil {
		logger.Warn(ctx, "fail idempotency key", "key", key, "error", err)
	}
}
