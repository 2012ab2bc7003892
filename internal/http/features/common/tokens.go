// Package common holds response shapes shared by the auth feature handlers.
package common

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/domain"
)

// UserResponse is the public view of a user account.
type UserResponse struct {
	ID    uuid.UUID   `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// NewUserResponse converts a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// TokenResponse is returned by login and refresh. Web clients receive the
// tokens as cookies only; mobile clients also get them in the body.
type TokenResponse struct {
	User             UserResponse `json:"user"`
	SessionID        uuid.UUID    `json:"sessionId"`
	AccessToken      string       `json:"accessToken,omitempty"`
	RefreshToken     string       `json:"refreshToken,omitempty"`
	TokenType        string       `json:"tokenType"`
	ExpiresIn        int          `json:"expiresIn"`
	ExpiresAt        time.Time    `json:"expiresAt"`
	RefreshExpiresAt *time.Time   `json:"refreshExpiresAt,omitempty"`
}

// TokenWriter writes freshly issued token pairs to the client.
type TokenWriter struct {
	Cookies    httputil.CookieConfig
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Write always resets all three auth cookies with matching expiries.
func (tw TokenWriter) Write(w http.ResponseWriter, r *http.Request, user *domain.User, sessionID uuid.UUID, tokens *domain.TokenPair) {
	httputil.SetAuthCookies(w, tokens, sessionID, tw.AccessTTL, tw.RefreshTTL, tw.Cookies)

	resp := TokenResponse{
		User:      NewUserResponse(user),
		SessionID: sessionID,
		TokenType: tokens.TokenType,
		ExpiresIn: tokens.ExpiresIn,
		ExpiresAt: tokens.ExpiresAt,
	}
	if httputil.IsMobileClient(r) {
		resp.AccessToken = tokens.AccessToken
		resp.RefreshToken = tokens.RefreshToken
		refreshExpiresAt := tokens.RefreshExpiresAt
		resp.RefreshExpiresAt = &refreshExpiresAt
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// SessionResponse is the device-list view of a session.
type SessionResponse struct {
	ID              uuid.UUID               `json:"id"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastRefreshedAt *time.Time              `json:"lastRefreshedAt,omitempty"`
	ExpiresAt       time.Time               `json:"expiresAt"`
	RevokedAt       *time.Time              `json:"revokedAt,omitempty"`
	RevokedReason   domain.RevocationReason `json:"revokedReason,omitempty"`
	UserAgent       string                  `json:"userAgent,omitempty"`
	IP              string                  `json:"ip,omitempty"`
	Current         bool                    `json:"current,omitempty"`
}

// NewSessionResponses converts sessions, flagging the one with id current.
func NewSessionResponses(sessions []*domain.Session, current uuid.UUID) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:              s.ID,
			CreatedAt:       s.CreatedAt,
			LastRefreshedAt: s.LastRefreshedAt,
			ExpiresAt:       s.ExpiresAt,
			RevokedAt:       s.RevokedAt,
			RevokedReason:   s.RevokedReason,
			UserAgent:       s.UserAgent,
			IP:              s.IP,
			Current:         current != uuid.Nil && s.ID == current,
		})
	}
	return out
}

// ParseActiveOnly reads the activeOnly query flag, which defaults to true.
func ParseActiveOnly(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("activeOnly")
	if v == "" {
		return true, nil
	}
	switch v {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, domain.NewError(domain.KindValidation, "activeOnly must be true or false")
}
