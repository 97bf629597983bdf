package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/devpulse_tracker/internal/pkg/response"
)

// SessionChecker 会话是否有效
type SessionChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

// RequireSession 没有有效会话 token 时拒绝请求，不会转发到后端
func RequireSession(sess SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sess.IsAuthenticated(c.Request.Context()) {
			response.AuthError(c, "please log in first")
			c.Abort()
			return
		}
		c.Next()
	}
}
