// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/authchain/internal/i18n"
)

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	if !i18n.IsSupported(defaultLang) {
		defaultLang = "en"
	}
	return func(c *gin.Context) {
		c.Set("lang", parseLanguage(c.GetHeader("Accept-Language"), defaultLang))
		c.Next()
	}
}

// parseLanguage picks the first tag of an Accept-Language header such as
// "pt-BR,pt;q=0.9,en;q=0.8".
func parseLanguage(header, defaultLang string) string {
	if header == "" {
		return defaultLang
	}
	first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	switch strings.ToLower(strings.ReplaceAll(first, "_", "-")) {
	case "pt", "pt-br", "pt-pt":
		return "pt_BR"
	case "en", "en-us", "en-gb":
		return "en"
	default:
		return defaultLang
	}
}
