package domain

import (
	"time"

	"github.com/google/uuid"
)

// RevocationReason records why a session stopped being usable.
type RevocationReason string

const (
	RevokedUserLogout   RevocationReason = "user_logout"
	RevokedAdminRevoked RevocationReason = "admin_revoked"
	RevokedExpired      RevocationReason = "expired"
	RevokedRotated      RevocationReason = "rotated"
)

// Valid reports whether r is one of the known reasons.
func (r RevocationReason) Valid() bool {
	switch r {
	case RevokedUserLogout, RevokedAdminRevoked, RevokedExpired, RevokedRotated:
		return true
	}
	return false
}

// Session represents an authentication session. Sessions are never deleted;
// revoked sessions are kept for audit.
type Session struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TokenHash       string
	CreatedAt       time.Time
	LastRefreshedAt *time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	RevokedReason   RevocationReason
	UserAgent       string
	IP              string
}

// SessionMetadata holds optional client context captured at login.
type SessionMetadata struct {
	IP        string
	UserAgent string
}

// SessionTouch describes the update applied to a session on refresh.
type SessionTouch struct {
	At        time.Time
	ExpiresAt time.Time
	// TokenHash replaces the stored refresh token fingerprint when non-empty.
	TokenHash string
	// ExpectedHash, when non-empty, applies the touch only if the stored
	// fingerprint still equals it. A mismatch reports ErrSessionRevoked.
	ExpectedHash string
}

// IsActive checks that the session is neither revoked nor expired at now.
func (s *Session) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// TokenPair represents the access and refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int       `json:"expiresIn"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
