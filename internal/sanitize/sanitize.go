// Package sanitize cleans free text supplied by users before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// bluemonday policies are safe for concurrent use once built.
var strict = bluemonday.StrictPolicy()

// PlainText strips all markup from s and returns the remaining text unescaped, so that
// "Tom & Jerry" is stored as typed rather than as "Tom &amp; Jerry".
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
