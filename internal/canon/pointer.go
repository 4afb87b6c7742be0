package canon

import "strings"

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// EscapePointer escapes one JSON pointer reference token (RFC 6901).
func EscapePointer(token string) string {
	return pointerEscaper.Replace(token)
}
