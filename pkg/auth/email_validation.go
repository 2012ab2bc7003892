package auth

import (
	"net/mail"
	"strings"

	"github.com/tendant/storefront-api/pkg/domain"
)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.Wrap(domain.KindValidation, "email address is required", nil)
	}
	if len(email) > maxEmailLength {
		return domain.Wrap(domain.KindValidation, "email address is too long", nil)
	}

	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil || addr.Name != "" {
		return domain.Wrap(domain.KindValidation, "invalid email address format", nil)
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
