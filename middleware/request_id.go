package middleware

import (
	"context"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID carries the request id in and out; a caller-supplied one
// is honored so a trace can span the upload and the scan it triggers.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns every request a unique id and threads it through the
// request context, where the pipeline logger picks it up.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header(HeaderRequestID, requestID)
		c.Set("request_id", requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}
