package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery recovers from handler panics. The request id rides along in the
// response body so a customer-reported failure can be matched to the log
// line carrying the stack trace.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}
