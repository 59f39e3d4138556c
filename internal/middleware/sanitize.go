// internal/middleware/sanitize.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/utils"
)

// SanitizeInput strips markup from every top-level string field of a JSON
// body before it reaches a handler. Numbers are kept verbatim.
func SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if c.Request.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			utils.BadRequestResponse(c, "", nil)
			c.Abort()
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			utils.BadRequestResponse(c, "", err.Error())
			c.Abort()
			return
		}

		for k, v := range body {
			if str, ok := v.(string); ok {
				body[k] = utils.StripMarkup(str)
			}
		}

		cleaned, err := json.Marshal(body)
		if err != nil {
			utils.InternalErrorResponse(c, err)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(cleaned))
		c.Request.ContentLength = int64(len(cleaned))

		c.Next()
	}
}
