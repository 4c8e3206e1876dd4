// Package sanitizer normalizes free-text session fields before persistence.
package sanitizer

import (
	"strings"
	"unicode"
)

// TrimAndNormalize trims the string and collapses any run of whitespace,
// including control characters, into a single space.
func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsControl(r):
			// Drop stray control characters outright.
		default:
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

// NormalizeTitle cleans a session title or display name.
func NormalizeTitle(title string) string {
	return TrimAndNormalize(title)
}

// NormalizeNotes cleans free-form notes but preserves line breaks so a coach's
// formatting survives.
func NormalizeNotes(notes string) string {
	lines := strings.Split(notes, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, TrimAndNormalize(line))
	}

	// Collapse leading/trailing blank lines.
	for len(cleaned) > 0 && cleaned[0] == "" {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}

	return strings.Join(cleaned, "\n")
}

// NormalizeLocation cleans an in-person meeting place.
func NormalizeLocation(location string) string {
	return TrimAndNormalize(location)
}
