package services

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips every tag; ticket text is stored as plain text.
var textPolicy = bluemonday.StrictPolicy()

// maxSanitizeRounds bounds how many layers of entity encoding are peeled off.
const maxSanitizeRounds = 8

// plainText removes markup from s. Entities are decoded after each pass so
// "a & b" survives, and the pass is repeated until the text stops changing so
// encoded markup such as "&lt;b&gt;" cannot decode back into a tag.
func plainText(s string) string {
	for i := 0; i < maxSanitizeRounds; i++ {
		next := html.UnescapeString(textPolicy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}
