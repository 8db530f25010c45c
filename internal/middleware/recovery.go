package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/api/response"
	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/logger"
	"go.uber.org/zap"
)

// maxStackTrace bounds the logged stack so one panic cannot flood the log.
const maxStackTrace = 4096

// RecoveryMiddleware converts panics into a 500 envelope. Stack traces go to
// the log only, never to the caller.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				if len(stack) > maxStackTrace {
					stack = stack[:maxStackTrace]
				}

				logger.Error("panic recovered",
					zap.Any("panic", err),
					zap.String("request_id", GetRequestID(c)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack_trace", string(stack)),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					response.Error(apperrors.ErrInternalServer, "something went wrong, please try again"))
			}
		}()

		c.Next()
	}
}
