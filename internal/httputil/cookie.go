package httputil

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

// Cookie names shared with the storefront frontend.
const (
	AccessTokenCookie  = "token"
	RefreshTokenCookie = "refreshToken"
	SessionIDCookie    = "sessionId"
)

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfigFor(false)
}

// CookieConfigFor returns Secure, SameSite=Strict cookies in production and
// SameSite=Lax otherwise.
func CookieConfigFor(production bool) CookieConfig {
	if production {
		return CookieConfig{Path: "/", Secure: true, SameSite: http.SameSiteStrictMode}
	}
	return CookieConfig{Path: "/", SameSite: http.SameSiteLaxMode}
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// SetAuthCookies sets the access token, refresh token and session id cookies.
func SetAuthCookies(w http.ResponseWriter, tokens *domain.TokenPair, sessionID uuid.UUID, accessTTL, refreshTTL time.Duration, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, tokens.AccessToken, int(accessTTL.Seconds())))
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, tokens.RefreshToken, int(refreshTTL.Seconds())))
	http.SetCookie(w, cfg.cookie(SessionIDCookie, sessionID.String(), int(refreshTTL.Seconds())))
}

// ClearAuthCookies expires all auth cookies.
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, SessionIDCookie} {
		http.SetCookie(w, cfg.cookie(name, "", -1))
	}
}

// GetRefreshTokenFromCookie extracts refresh token from cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, bool) {
	return cookieValue(r, RefreshTokenCookie)
}

// GetAccessTokenFromCookie extracts access token from cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	return cookieValue(r, AccessTokenCookie)
}

// GetSessionIDFromCookie extracts and parses the session id cookie.
func GetSessionIDFromCookie(r *http.Request) (uuid.UUID, bool) {
	v, ok := cookieValue(r, SessionIDCookie)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func cookieValue(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// IsMobileClient checks if request is from a mobile client.
// Mobile clients should set header: X-Client-Type: mobile
func IsMobileClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "mobile"
}
