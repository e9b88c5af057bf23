package middleware

import (
	"fmt"
	"net/http"

	"codeexec/pkg/errors"
	"codeexec/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// BodyLimitMiddleware rejects requests whose declared body exceeds maxBytes and
// caps the reader for the rest, so a lying Content-Length fails at decode time.
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.AbortWithErrorCode(c, errors.CodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytes))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
