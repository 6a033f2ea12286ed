package util

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// MaskSecret keeps the last four characters of s and hides the rest.
func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	runes := []rune(s)
	return strings.Repeat("*", n-4) + string(runes[n-4:])
}
