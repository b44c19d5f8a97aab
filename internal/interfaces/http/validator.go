package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxCodeLength     = 16
	MaxPasswordLength = 256
	MaxChatIDLength   = 128
	MaxBatchSize      = 200
)

var (
	codePattern   = regexp.MustCompile(`^[A-Za-z0-9 -]+$`)
	chatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]+$`)
)

// ValidCode checks a verification or pairing code
func ValidCode(s string) bool {
	if s == "" || len(s) > MaxCodeLength {
		return false
	}
	return codePattern.MatchString(s)
}

// ValidChatID checks a platform chat id (JIDs, numeric ids)
func ValidChatID(s string) bool {
	if s == "" || len(s) > MaxChatIDLength {
		return false
	}
	return chatIDPattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := len(s)
	return l >= min && l <= max
}
