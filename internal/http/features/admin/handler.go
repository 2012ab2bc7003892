// Package admin exposes session management for staff accounts.
package admin

import (
	"context"
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

// UserLookup resolves the user named in the path.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Handler handles admin session endpoints.
type Handler struct {
	sessions *auth.SessionService
	users    UserLookup
	errs     httputil.ErrorWriter
	logger   *slog.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(sessions *auth.SessionService, users UserLookup, errs httputil.ErrorWriter) *Handler {
	logger := errs.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		users:    users,
		errs:     errs,
		logger:   logger,
	}
}

// RegisterRoutes registers admin routes. They must run behind Auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(domain.RoleAdmin, domain.RoleManager)).
		Get("/api/admin/users/{id}/sessions", h.ListUserSessions)
	r.With(middleware.RequireRole(domain.RoleAdmin)).
		Delete("/api/admin/users/{id}/sessions", h.RevokeUserSessions)
}

// SessionsResponse lists a user's sessions.
type SessionsResponse struct {
	UserID   uuid.UUID                `json:"userId"`
	Sessions []common.SessionResponse `json:"sessions"`
}

// ListUserSessions lists a user's sessions, most recent first.
// GET /api/admin/users/{id}/sessions?activeOnly=true
func (h *Handler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}
	activeOnly, err := common.ParseActiveOnly(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	sessions, err := h.sessions.GetActiveSessions(r.Context(), userID, activeOnly)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, SessionsResponse{
		UserID:   userID,
		Sessions: common.NewSessionResponses(sessions, uuid.Nil),
	})
}

// RevokeRequest optionally names the revocation reason.
type RevokeRequest struct {
	Reason domain.RevocationReason `json:"reason"`
}

// RevokeResponse reports how many sessions were revoked.
type RevokeResponse struct {
	RevokedCount int64 `json:"revokedCount"`
}

// RevokeUserSessions force-logs-out a user on every device.
// DELETE /api/admin/users/{id}/sessions
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req RevokeRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = domain.RevokedAdminRevoked
	}
	if !req.Reason.Valid() {
		httputil.Error(w, http.StatusBadRequest, "unknown revocation reason")
		return
	}

	count, err := h.sessions.RevokeAllSessions(r.Context(), userID, req.Reason)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	actor, _ := middleware.GetUserID(r.Context())
	h.logger.Info("admin revoked sessions",
		"actor_id", actor,
		"user_id", userID,
		"reason", req.Reason,
		"count", count,
	)
	httputil.JSON(w, http.StatusOK, RevokeResponse{RevokedCount: count})
}

func (h *Handler) targetUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return uuid.Nil, false
	}
	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "user not found")
			return uuid.Nil, false
		}
		h.errs.Write(w, r, err)
		return uuid.Nil, false
	}
	return userID, true
}
