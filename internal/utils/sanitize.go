// internal/utils/sanitize.go
package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var markupPolicy = bluemonday.StrictPolicy()

// StripMarkup removes HTML tags from free text and leaves everything else,
// ampersands and quotes included, as written. Escaped markup is unwrapped and
// stripped as well.
func StripMarkup(s string) string {
	for i := 0; i < 4; i++ {
		out := html.UnescapeString(markupPolicy.Sanitize(s))
		if out == s {
			break
		}
		s = out
	}
	return s
}
