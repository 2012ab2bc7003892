package password

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/storefront-api/internal/http/features/common"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/domain"
)

// Handler handles password login.
type Handler struct {
	passwords *auth.PasswordService
	sessions  *auth.SessionService
	tokens    common.TokenWriter
	errs      httputil.ErrorWriter
	logger    *slog.Logger
}

// NewHandler creates a new password handler.
func NewHandler(passwords *auth.PasswordService, sessions *auth.SessionService, cookies httputil.CookieConfig, errs httputil.ErrorWriter) *Handler {
	logger := errs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		passwords: passwords,
		sessions:  sessions,
		tokens: common.TokenWriter{
			Cookies:    cookies,
			AccessTTL:  sessions.Tokens().AccessTokenTTL(),
			RefreshTTL: sessions.Tokens().RefreshTokenTTL(),
		},
		errs:   errs,
		logger: logger,
	}
}

// RegisterRoutes registers password authentication routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/auth/login", h.Login)
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and starts a new session.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req, false); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.passwords.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if domain.KindOf(err) == domain.KindInvalidCredentials {
			h.logger.Info("login failed", "ip", httputil.ClientIP(r))
		}
		h.errs.Write(w, r, err)
		return
	}

	sessionID, tokens, err := h.sessions.IssueSession(r.Context(), user.ID, httputil.SessionMetadata(r))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	h.tokens.Write(w, r, user, sessionID, tokens)
}
