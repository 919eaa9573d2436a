package normalization

import (
	"strings"
	"unicode"
)

// ParseInputString trims surrounding whitespace and lowercases.
func ParseInputString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ParseInputStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := ParseInputString(*s)
	if out == "" {
		return nil
	}
	return &out
}

// TrimOptional trims a user supplied optional field, collapsing blanks to nil.
func TrimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	out := strings.TrimSpace(*s)
	if out == "" {
		return nil
	}
	return &out
}

// CollapseWhitespace turns any run of whitespace into a single space.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
