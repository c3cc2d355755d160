package chat

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict strips every tag; the conversation renders plain text only.
var strict = bluemonday.StrictPolicy()

// SanitizeContent removes all markup from a chat message and returns the
// remaining plain text, trimmed. A message that was only markup comes back
// empty and must be rejected by the caller.
func SanitizeContent(content string) string {
	cleaned := strict.Sanitize(strings.TrimSpace(content))
	// bluemonday escapes entities for HTML output; undo that for plain text.
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
