package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tendant/storefront-api/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// AdminPasswordPolicy applies to staff accounts created from configuration.
var AdminPasswordPolicy = PasswordPolicy{
	MinLength:    12,
	RequireUpper: true,
	RequireLower: true,
	RequireDigit: true,
}

// Validate reports every unmet requirement in a single validation error.
func (p PasswordPolicy) Validate(password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			symbol = true
		}
	}

	var missing []string
	if p.MinLength > 0 && len([]rune(password)) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	if p.RequireUpper && !upper {
		missing = append(missing, "an uppercase letter")
	}
	if p.RequireLower && !lower {
		missing = append(missing, "a lowercase letter")
	}
	if p.RequireDigit && !digit {
		missing = append(missing, "a digit")
	}
	if p.RequireSymbol && !symbol {
		missing = append(missing, "a symbol")
	}
	if len(missing) == 0 {
		return nil
	}
	return domain.NewError(domain.KindValidation, "password needs "+strings.Join(missing, ", "))
}
