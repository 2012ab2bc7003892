package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

// MemorySessionsRepository implements the session store with an in-memory
// map. It is used for local development and tests.
type MemorySessionsRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
	now      func() time.Time
}

// NewMemorySessionsRepository creates a new in-memory session store.
func NewMemorySessionsRepository() *MemorySessionsRepository {
	return &MemorySessionsRepository{
		sessions: make(map[uuid.UUID]*domain.Session),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for revocation timestamps and
// active-session filtering.
func (r *MemorySessionsRepository) WithClock(now func() time.Time) *MemorySessionsRepository {
	r.now = now
	return r
}

// Create persists a new session.
func (r *MemorySessionsRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *session
	r.sessions[session.ID] = &c
	return nil
}

// GetByID retrieves a session by ID.
func (r *MemorySessionsRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *session
	return &c, nil
}

// ListByUserID returns the user's sessions, most recent first.
func (r *MemorySessionsRepository) ListByUserID(_ context.Context, userID uuid.UUID, activeOnly bool) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var sessions []*domain.Session
	for _, session := range r.sessions {
		if session.UserID != userID {
			continue
		}
		if activeOnly && !session.IsActive(now) {
			continue
		}
		c := *session
		sessions = append(sessions, &c)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
	return sessions, nil
}

// Revoke marks a session revoked. Already revoked sessions are left as is.
func (r *MemorySessionsRepository) Revoke(_ context.Context, id uuid.UUID, reason domain.RevocationReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.RevokedAt != nil {
		return nil
	}
	now := r.now()
	session.RevokedAt = &now
	session.RevokedReason = reason
	return nil
}

// RevokeAllByUserID revokes all of the user's unrevoked sessions.
func (r *MemorySessionsRepository) RevokeAllByUserID(_ context.Context, userID uuid.UUID, reason domain.RevocationReason) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var count int64
	for _, session := range r.sessions {
		if session.UserID != userID || session.RevokedAt != nil {
			continue
		}
		revokedAt := now
		session.RevokedAt = &revokedAt
		session.RevokedReason = reason
		count++
	}
	return count, nil
}

// Touch records a refresh on an unrevoked session.
func (r *MemorySessionsRepository) Touch(_ context.Context, id uuid.UUID, touch domain.SessionTouch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.RevokedAt != nil {
		return domain.ErrSessionRevoked
	}
	if touch.ExpectedHash != "" && session.TokenHash != touch.ExpectedHash {
		return domain.ErrSessionRevoked
	}
	at := touch.At
	session.LastRefreshedAt = &at
	session.ExpiresAt = touch.ExpiresAt
	if touch.TokenHash != "" {
		session.TokenHash = touch.TokenHash
	}
	return nil
}

// MemoryUsersRepository is an in-memory user store.
type MemoryUsersRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

// NewMemoryUsersRepository creates a new in-memory user store.
func NewMemoryUsersRepository() *MemoryUsersRepository {
	return &MemoryUsersRepository{users: make(map[uuid.UUID]*domain.User)}
}

// Create adds a user. Emails are stored normalized.
func (r *MemoryUsersRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *user
	c.Email = strings.ToLower(c.Email)
	r.users[user.ID] = &c
	return nil
}

// Delete soft-deletes a user.
func (r *MemoryUsersRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return domain.ErrUserNotFound
	}
	now := time.Now()
	user.DeletedAt = &now
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUsersRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok || user.DeletedAt != nil {
		return nil, domain.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

// GetByEmail retrieves a user by email.
func (r *MemoryUsersRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(email)
	for _, user := range r.users {
		if user.Email == email && user.DeletedAt == nil {
			c := *user
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MemoryCatalogRepository is an in-memory catalog.
type MemoryCatalogRepository struct {
	mu         sync.RWMutex
	categories []domain.Category
	products   []domain.Product
}

// NewMemoryCatalogRepository creates a catalog seeded with the given data.
func NewMemoryCatalogRepository(categories []domain.Category, products []domain.Product) *MemoryCatalogRepository {
	return &MemoryCatalogRepository{categories: categories, products: products}
}

// ListCategories returns all categories in display order.
func (r *MemoryCatalogRepository) ListCategories(_ context.Context) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := append([]domain.Category{}, r.categories...)
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

// ListProducts returns available products matching the filter.
func (r *MemoryCatalogRepository) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = normalizeProductFilter(filter)

	var categoryID *uuid.UUID
	if filter.CategorySlug != "" {
		for _, c := range r.categories {
			if c.Slug == filter.CategorySlug {
				id := c.ID
				categoryID = &id
				break
			}
		}
		if categoryID == nil {
			return []domain.Product{}, nil
		}
	}

	matched := []domain.Product{}
	for _, p := range r.products {
		if !p.Available {
			continue
		}
		if categoryID != nil && p.CategoryID != *categoryID {
			continue
		}
		matched = append(matched, p)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	if filter.Offset >= len(matched) {
		return []domain.Product{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}
