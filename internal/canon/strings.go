package canon

import (
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimestampLayout is the canonical rendering of offset-aware timestamps:
// UTC with fixed microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Accepted offset-aware input layouts. Fractional seconds are optional when
// parsing, and every layout requires a zone ("Z" or a numeric offset).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
}

var drivePrefix = regexp.MustCompile(`^([A-Za-z]):(/|$)`)

// normalizeString applies the string rules for a value whose immediately
// enclosing object key is key.
func normalizeString(key, s string) string {
	s = norm.NFC.String(s)
	s = NormalizeLineEndings(s)
	switch {
	case isPathKey(key):
		return NormalizePath(s)
	case isTimestampKey(key):
		if ts, ok := NormalizeTimestamp(s); ok {
			return ts
		}
	}
	return s
}

// NormalizeLineEndings rewrites CRLF and lone CR to LF.
func NormalizeLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// NormalizePath converts a filesystem path to a platform-independent form:
// forward slashes, no duplicate separators, "." and ".." resolved, and a
// Windows drive prefix rewritten as "/<drive>/". A trailing slash survives
// unless the result is the root.
func NormalizePath(p string) string {
	if p == "" {
		return p
	}
	s := strings.ReplaceAll(p, `\`, "/")
	if m := drivePrefix.FindStringSubmatch(s); m != nil {
		s = "/" + strings.ToLower(m[1]) + "/" + s[len(m[0]):]
	}
	trailing := strings.HasSuffix(s, "/")
	cleaned := path.Clean(s)
	if trailing && cleaned != "/" && cleaned != "." {
		cleaned += "/"
	}
	return cleaned
}

// NormalizeTimestamp parses an offset-aware timestamp and renders it in UTC
// with microsecond precision. It returns false for values without zone
// information or that do not parse.
func NormalizeTimestamp(s string) (string, bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return s, false
	}
	return t.UTC().Format(TimestampLayout), true
}

// ParseTimestamp parses an offset-aware timestamp. "Z" means UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
