package auth

import (
	"strings"
	"unicode"

	"github.com/tendant/storefront-api/pkg/domain"
)

// Stored metadata limits, in runes.
const (
	maxUserAgentLength = 512
	maxIPLength        = 64
)

// SanitizeMetadata strips control characters from client supplied session
// metadata and truncates it to the stored column limits.
func SanitizeMetadata(m domain.SessionMetadata) domain.SessionMetadata {
	return domain.SessionMetadata{
		IP:        truncate(removeControlChars(strings.TrimSpace(m.IP)), maxIPLength),
		UserAgent: truncate(removeControlChars(strings.TrimSpace(m.UserAgent)), maxUserAgentLength),
	}
}

func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
