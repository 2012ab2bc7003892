package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

// SessionStore persists sessions. Implementations live in pkg/repository.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error)
	Revoke(ctx context.Context, id uuid.UUID, reason domain.RevocationReason) error
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error)
	Touch(ctx context.Context, id uuid.UUID, touch domain.SessionTouch) error
}

// UserStore loads user accounts.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// SessionConfig holds session configuration.
type SessionConfig struct {
	// DetectReuse revokes a session when a superseded refresh token is presented.
	DetectReuse bool
	Logger      *slog.Logger
}

// SessionService owns the session lifecycle: issuance at login,
// authentication of access tokens, refresh and revocation.
type SessionService struct {
	config   SessionConfig
	tokens   *TokenIssuer
	sessions SessionStore
	users    UserStore
	now      func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, tokens *TokenIssuer, sessions SessionStore, users UserStore) *SessionService {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &SessionService{
		config:   config,
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		now:      tokens.config.Now,
	}
}

// Tokens returns the token issuer backing the service.
func (s *SessionService) Tokens() *TokenIssuer {
	return s.tokens
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	User      *domain.User
	SessionID uuid.UUID
	Claims    *Claims
}

// RefreshResult is returned by a successful refresh.
type RefreshResult struct {
	User      *domain.User
	SessionID uuid.UUID
	Tokens    *domain.TokenPair
}

// CreateSession inserts a new active session record for the user.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, metadata domain.SessionMetadata) (uuid.UUID, error) {
	session := s.newSession(uuid.New(), userID, metadata)
	if err := s.sessions.Create(ctx, session); err != nil {
		return uuid.Nil, err
	}
	return session.ID, nil
}

// IssueSession creates a session for the user and returns its first token
// pair. All login methods go through here.
func (s *SessionService) IssueSession(ctx context.Context, userID uuid.UUID, metadata domain.SessionMetadata) (uuid.UUID, *domain.TokenPair, error) {
	sessionID := uuid.New()
	tokens, err := s.tokens.Issue(userID, sessionID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	session := s.newSession(sessionID, userID, metadata)
	session.TokenHash = HashToken(tokens.RefreshToken)
	session.ExpiresAt = tokens.RefreshExpiresAt
	if err := s.sessions.Create(ctx, session); err != nil {
		return uuid.Nil, nil, err
	}

	s.config.Logger.Info("session issued", "user_id", userID, "session_id", sessionID)
	return sessionID, tokens, nil
}

func (s *SessionService) newSession(id, userID uuid.UUID, metadata domain.SessionMetadata) *domain.Session {
	now := s.now()
	metadata = SanitizeMetadata(metadata)
	return &domain.Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshTokenTTL()),
		UserAgent: metadata.UserAgent,
		IP:        metadata.IP,
	}
}

// Authenticate resolves the principal behind an access token.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}

	sessionID, _ := claims.Session()
	userID, _ := claims.UserID()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionRevoked
		}
		return nil, err
	}
	if session.UserID != userID || !session.IsActive(s.now()) {
		return nil, domain.ErrSessionRevoked
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Principal{User: user, SessionID: sessionID, Claims: claims}, nil
}

// Refresh exchanges a valid refresh token for a new token pair bound to the
// same session. Access tokens issued before the refresh stay valid until
// their own expiry; the session is the unit of revocation.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, err
		}
		return nil, domain.ErrInvalidToken
	}

	sessionID, _ := claims.Session()
	userID, _ := claims.UserID()

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionRevoked
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrSessionRevoked
	}
	if !session.IsActive(s.now()) {
		if session.RevokedAt == nil {
			// Mark lapsed sessions so they read as expired in the device list.
			if err := s.sessions.Revoke(ctx, session.ID, domain.RevokedExpired); err != nil {
				s.config.Logger.Warn("failed to mark lapsed session expired",
					"session_id", sessionID,
					"error", err,
				)
			}
		}
		return nil, domain.ErrSessionRevoked
	}

	presented := HashToken(refreshToken)
	if s.config.DetectReuse && session.TokenHash != "" && session.TokenHash != presented {
		return nil, s.revokeReused(ctx, userID, sessionID)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokens.Issue(userID, sessionID)
	if err != nil {
		return nil, err
	}

	touch := domain.SessionTouch{
		At:        s.now(),
		ExpiresAt: tokens.RefreshExpiresAt,
		TokenHash: HashToken(tokens.RefreshToken),
	}
	if s.config.DetectReuse && session.TokenHash != "" {
		// Another refresh may have rotated the token since it was read.
		touch.ExpectedHash = presented
	}
	if err := s.sessions.Touch(ctx, sessionID, touch); err != nil {
		if touch.ExpectedHash != "" && errors.Is(err, domain.ErrSessionRevoked) {
			return nil, s.revokeReused(ctx, userID, sessionID)
		}
		return nil, err
	}

	return &RefreshResult{User: user, SessionID: sessionID, Tokens: tokens}, nil
}

// revokeReused revokes a session whose refresh token was presented after it
// had been superseded.
func (s *SessionService) revokeReused(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.sessions.Revoke(ctx, sessionID, domain.RevokedRotated); err != nil {
		return err
	}
	s.config.Logger.Warn("refresh token reuse detected, session revoked",
		"user_id", userID,
		"session_id", sessionID,
	)
	return domain.ErrSessionRevoked
}

// SessionIDFromRefreshToken extracts the session claim from a valid refresh token.
func (s *SessionService) SessionIDFromRefreshToken(refreshToken string) (uuid.UUID, bool) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return uuid.Nil, false
	}
	id, err := claims.Session()
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetSession returns a single session by id.
func (s *SessionService) GetSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// GetActiveSessions returns the user's sessions, most recent first.
func (s *SessionService) GetActiveSessions(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	return s.sessions.ListByUserID(ctx, userID, activeOnly)
}

// RevokeSession revokes one session. Revoking an already revoked session is a no-op.
func (s *SessionService) RevokeSession(ctx context.Context, sessionID uuid.UUID, reason domain.RevocationReason) error {
	if err := s.sessions.Revoke(ctx, sessionID, reason); err != nil {
		return err
	}
	s.config.Logger.Info("session revoked", "session_id", sessionID, "reason", reason)
	return nil
}

// RevokeAllSessions revokes every active session of the user and reports how
// many were revoked.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error) {
	count, err := s.sessions.RevokeAllByUserID(ctx, userID, reason)
	if err != nil {
		return 0, err
	}
	s.config.Logger.Info("sessions revoked", "user_id", userID, "reason", reason, "count", count)
	return count, nil
}

// TouchSession records a refresh on the session without rotating its
// refresh fingerprint.
func (s *SessionService) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	now := s.now()
	return s.sessions.Touch(ctx, sessionID, domain.SessionTouch{
		At:        now,
		ExpiresAt: now.Add(s.tokens.RefreshTokenTTL()),
	})
}
