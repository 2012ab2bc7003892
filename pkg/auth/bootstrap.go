package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

// AccountStore creates and looks up user accounts.
type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
}

// EnsureAdmin creates an admin account with the given credentials unless an
// account with that email already exists. Existing accounts are left as is.
func EnsureAdmin(ctx context.Context, store AccountStore, email, password string, logger *slog.Logger) (*domain.User, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	existing, err := store.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			logger.Warn("bootstrap admin email belongs to a non-admin account", "user_id", existing.ID, "role", existing.Role)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	if err := AdminPasswordPolicy.Validate(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Administrator",
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Create(ctx, user); err != nil {
		return nil, err
	}
	logger.Info("bootstrap admin created", "user_id", user.ID, "email", email)
	return user, nil
}
