package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pothole-detect/internal/logger"
	"pothole-detect/internal/transport/http/response"
)

// Recovery answers a panic with the JSON error body instead of a bare 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error("panic recovered", "panic", recovered)
		response.Error(c, http.StatusInternalServerError, response.MsgInternal)
		c.Abort()
	})
}
