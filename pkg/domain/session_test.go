package domain

import (
	"testing"
	"time"
)

func TestSession_IsActive(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	tests := []struct {
		name    string
		session Session
		want    bool
	}{
		{
			name:    "active",
			session: Session{ExpiresAt: now.Add(time.Hour)},
			want:    true,
		},
		{
			name:    "expired",
			session: Session{ExpiresAt: now.Add(-time.Second)},
			want:    false,
		},
		{
			name:    "expires exactly now",
			session: Session{ExpiresAt: now},
			want:    false,
		},
		{
			name:    "revoked before expiry",
			session: Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.IsActive(now); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRevocationReason_Valid(t *testing.T) {
	for _, r := range []RevocationReason{RevokedUserLogout, RevokedAdminRevoked, RevokedExpired, RevokedRotated} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []RevocationReason{"", "stolen", "ADMIN_REVOKED"} {
		if r.Valid() {
			t.Errorf("%q should not be valid", r)
		}
	}
}
