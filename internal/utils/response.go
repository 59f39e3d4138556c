// internal/utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
)

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

func ErrorResponse(c *gin.Context, statusCode int, message, detail string, details interface{}) {
	c.JSON(statusCode, ErrorBody{
		Message: message,
		Error:   detail,
		Details: details,
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid, "request")
	}
	ErrorResponse(c, http.StatusBadRequest, message, "", details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, message, "", nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, message, "", nil)
}

// NotFoundResponse answers 404 with the translation of key.
func NotFoundResponse(c *gin.Context, key string) {
	lang := GetLangFromContext(c)
	ErrorResponse(c, http.StatusNotFound, i18n.T(lang, key), "", nil)
}

func InternalErrorResponse(c *gin.Context, err error) {
	lang := GetLangFromContext(c)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	ErrorResponse(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError), detail, nil)
}

func ValidationErrorResponse(c *gin.Context, key string, errors []ValidationError) {
	lang := GetLangFromContext(c)
	ErrorResponse(c, http.StatusBadRequest, i18n.T(lang, key), "", errors)
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

func GetRoleFromContext(c *gin.Context) (string, bool) {
	if role, exists := c.Get("role"); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr, true
		}
	}
	return "", false
}
