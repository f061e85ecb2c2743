package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avwx/portal/internal/interfaces/http/dto"
)

// BodyLimit rejects request bodies larger than maxBytes. The limit is
// enforced lazily by wrapping the body reader, so handlers that never
// read the body are unaffected.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			requestID := c.GetString("request_id")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeTooLarge,
				"Request body too large",
				requestID,
			))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
