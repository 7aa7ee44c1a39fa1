package text

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

// Validate rejects empty or whitespace-only input. It runs before Normalize so
// that input consisting only of whitespace never reaches the classifier.
func Validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyText
	}

	return nil
}

// Normalize lowercases s, drops every rune that is not an ASCII letter a-z or
// whitespace, collapses whitespace runs to a single space and trims the
// result. Text without letters yields "".
func Normalize(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case isSeparator(r):
			pendingSpace = true
		}
	}

	return b.String()
}

// Tokenize splits normalized text on whitespace. Empty input yields an empty,
// non-nil slice.
func Tokenize(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		return []string{}
	}

	return fields
}

// isSeparator matches the whitespace class used by the training pipeline,
// which also treats the ASCII file/group/record/unit separators as spaces.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}
