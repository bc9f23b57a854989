package validator

import "strings"

// htmlEscaper escapes the characters that enable markup injection when a
// string leaf is later rendered. The ampersand is deliberately not escaped,
// which makes sanitization idempotent over already-escaped output.
var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// sanitize returns a deep copy of v with every string leaf trimmed and
// HTML-escaped. Container structure and non-string leaves pass through
// unchanged.
func sanitize(v any) any {
	switch val := v.(type) {
	case string:
		return htmlEscaper.Replace(strings.TrimSpace(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitize(item)
		}
		return out
	default:
		return val
	}
}
