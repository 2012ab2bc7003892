package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

const sessionColumns = `id, user_id, token_hash, created_at, last_refreshed_at, expires_at,
		       revoked_at, revoked_reason, user_agent, ip`

// SessionsRepository handles session persistence.
type SessionsRepository struct {
	db Querier
}

// NewSessionsRepository creates a new sessions repository.
func NewSessionsRepository(db Querier) *SessionsRepository {
	return &SessionsRepository{db: db}
}

// Create creates a new session.
func (r *SessionsRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, created_at, expires_at, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.CreatedAt,
		session.ExpiresAt, session.UserAgent, session.IP,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID, revoked or not.
func (r *SessionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`
	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return session, nil
}

// ListByUserID returns the user's sessions, most recent first. With
// activeOnly, revoked and expired sessions are excluded.
func (r *SessionsRepository) ListByUserID(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
	`
	if activeOnly {
		query += ` AND revoked_at IS NULL AND expires_at > NOW()`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// Revoke marks a session revoked. Revoking an already revoked session keeps
// the original reason and returns nil.
func (r *SessionsRepository) Revoke(ctx context.Context, id uuid.UUID, reason domain.RevocationReason) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, string(reason))
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	return nil
}

// RevokeAllByUserID revokes all of the user's unrevoked sessions and
// returns how many were revoked.
func (r *SessionsRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error) {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, userID, string(reason))
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}
	return result.RowsAffected()
}

// Touch records a refresh: last_refreshed_at, sliding expiry and, when
// given, the new refresh token fingerprint. With ExpectedHash set the update
// only applies while the stored fingerprint still matches it.
func (r *SessionsRepository) Touch(ctx context.Context, id uuid.UUID, touch domain.SessionTouch) error {
	query := `
		UPDATE sessions
		SET last_refreshed_at = $2, expires_at = $3, token_hash = COALESCE(NULLIF($4, ''), token_hash)
		WHERE id = $1 AND revoked_at IS NULL
	`
	args := []any{id, touch.At, touch.ExpiresAt, touch.TokenHash}
	if touch.ExpectedHash != "" {
		query += ` AND token_hash = $5`
		args = append(args, touch.ExpectedHash)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrSessionRevoked
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	session := &domain.Session{}
	var reason sql.NullString
	err := row.Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt,
		&session.LastRefreshedAt, &session.ExpiresAt, &session.RevokedAt,
		&reason, &session.UserAgent, &session.IP,
	)
	if err != nil {
		return nil, err
	}
	session.RevokedReason = domain.RevocationReason(reason.String)
	return session, nil
}
