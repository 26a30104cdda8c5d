package http

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxTitleLength       = 256
	MaxMessageLength     = 4096
	MaxInstructionLength = 50000 // For AI prompts
	MaxSessionIDLength   = 64
	MaxTranslateTexts    = 500
	MaxImportBytes       = 5 << 20
)

var (
	colorPattern     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidColor accepts #rrggbb hex colors.
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// ValidSessionID checks a web chat session id is safe to use as a room name
func ValidSessionID(s string) bool {
	return s != "" && len(s) <= MaxSessionIDLength && sessionIDPattern.MatchString(s)
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
	return strings.TrimSpace(s)
}

// TruncateString truncates to maxLen runes
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// ValidateLength checks if string is within bounds, counted in runes
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
