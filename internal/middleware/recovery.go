package middleware

import (
	"runtime/debug"

	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/errors"
	"github.com/bingooyong/ops-scaffold-framework/firmware/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 错误恢复中间件
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
					zap.String("request_id", GetRequestID(c)),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				response.Error(c, errors.ErrInternalServerMsg)
				c.Abort()
			}
		}()

		c.Next()
	}
}
