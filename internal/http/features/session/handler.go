package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/storefront-api/internal/http/features/common"
	"github.com/tendant/storefront-api/internal/http/middleware"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/domain"
)

// Handler handles session endpoints.
type Handler struct {
	sessions *auth.SessionService
	tokens   common.TokenWriter
	errs     httputil.ErrorWriter
	logger   *slog.Logger
}

// NewHandler creates a new session handler.
func NewHandler(sessions *auth.SessionService, cookies httputil.CookieConfig, errs httputil.ErrorWriter) *Handler {
	logger := errs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		tokens: common.TokenWriter{
			Cookies:    cookies,
			AccessTTL:  sessions.Tokens().AccessTokenTTL(),
			RefreshTTL: sessions.Tokens().RefreshTokenTTL(),
		},
		errs:   errs,
		logger: logger,
	}
}

// RegisterPublicRoutes registers the endpoints that take a refresh token
// instead of an access token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/auth/refresh", h.Refresh)
	r.Post("/api/auth/logout", h.Logout)
}

// RegisterRoutes registers endpoints that run behind the Auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/logout/all", h.LogoutAll)
	r.Get("/api/auth/me", h.Me)
	r.Get("/api/auth/sessions", h.ListSessions)
	r.Delete("/api/auth/sessions/{sessionId}", h.RevokeSession)
}

// RefreshRequest carries the refresh token for clients that do not use cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a new token pair on the same session.
// POST /api/auth/refresh
//
// The token is read from the body first, then from the refreshToken cookie.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFrom(r)
	if err != nil {
		httputil.ClearAuthCookies(w, h.tokens.Cookies)
		h.logger.Info("refresh rejected", "reason", "malformed body", "ip", httputil.ClientIP(r))
		httputil.ErrorCode(w, http.StatusUnauthorized, domain.KindRefreshFailed.Code(), "invalid refresh request")
		return
	}
	if refreshToken == "" {
		httputil.ErrorCode(w, http.StatusUnauthorized, "REFRESH_TOKEN_REQUIRED", "refresh token required")
		return
	}

	result, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		httputil.ClearAuthCookies(w, h.tokens.Cookies)
		if domain.KindOf(err) == domain.KindInternal {
			h.errs.Write(w, r, err)
			return
		}
		h.logger.Info("refresh rejected", "reason", domain.KindOf(err).String(), "ip", httputil.ClientIP(r))
		httputil.ErrorCode(w, http.StatusUnauthorized, domain.KindRefreshFailed.Code(), "invalid or expired refresh token")
		return
	}

	h.tokens.Write(w, r, result.User, result.SessionID, result.Tokens)
}

func refreshTokenFrom(r *http.Request) (string, error) {
	var req RefreshRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		return "", err
	}
	if req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	token, _ := httputil.GetRefreshTokenFromCookie(r)
	return token, nil
}

// Logout revokes the caller's current session and clears the auth cookies.
// POST /api/auth/logout
//
// The session is identified by the signed refresh token, falling back to the
// access token. Logout always succeeds from the client's point of view.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := refreshTokenFrom(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	sessionID, ok := h.sessions.SessionIDFromRefreshToken(refreshToken)
	if !ok {
		sessionID, ok = h.sessionFromAccessToken(r)
	}
	if ok {
		err := h.sessions.RevokeSession(r.Context(), sessionID, domain.RevokedUserLogout)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			h.logger.Warn("logout revoke failed", "session_id", sessionID, "error", err)
		}
	}

	httputil.ClearAuthCookies(w, h.tokens.Cookies)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionFromAccessToken(r *http.Request) (uuid.UUID, bool) {
	claims, err := h.sessions.Tokens().VerifyAccess(middleware.ExtractToken(r))
	if err != nil {
		return uuid.Nil, false
	}
	id, err := claims.Session()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// LogoutAllResponse reports how many sessions were revoked.
type LogoutAllResponse struct {
	RevokedCount int64 `json:"revokedCount"`
}

// LogoutAll revokes every active session of the caller.
// POST /api/auth/logout/all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		h.errs.Write(w, r, domain.ErrTokenMissing)
		return
	}

	count, err := h.sessions.RevokeAllSessions(r.Context(), principal.User.ID, domain.RevokedUserLogout)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.ClearAuthCookies(w, h.tokens.Cookies)
	httputil.JSON(w, http.StatusOK, LogoutAllResponse{RevokedCount: count})
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	User      common.UserResponse `json:"user"`
	SessionID uuid.UUID           `json:"sessionId"`
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		h.errs.Write(w, r, domain.ErrTokenMissing)
		return
	}
	httputil.JSON(w, http.StatusOK, MeResponse{
		User:      common.NewUserResponse(principal.User),
		SessionID: principal.SessionID,
	})
}

// SessionsResponse lists sessions.
type SessionsResponse struct {
	Sessions []common.SessionResponse `json:"sessions"`
}

// ListSessions returns the caller's sessions, most recent first.
// GET /api/auth/sessions?activeOnly=true
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		h.errs.Write(w, r, domain.ErrTokenMissing)
		return
	}
	activeOnly, err := common.ParseActiveOnly(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	sessions, err := h.sessions.GetActiveSessions(r.Context(), principal.User.ID, activeOnly)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, SessionsResponse{
		Sessions: common.NewSessionResponses(sessions, principal.SessionID),
	})
}

// RevokeSession revokes one of the caller's own sessions.
// DELETE /api/auth/sessions/{sessionId}
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		h.errs.Write(w, r, domain.ErrTokenMissing)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		h.errs.Write(w, r, err)
		return
	}
	// Other users' sessions are reported as missing.
	if session == nil || session.UserID != principal.User.ID {
		httputil.Error(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.sessions.RevokeSession(r.Context(), sessionID, domain.RevokedUserLogout); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if sessionID == principal.SessionID {
		httputil.ClearAuthCookies(w, h.tokens.Cookies)
	}
	w.WriteHeader(http.StatusNoContent)
}
