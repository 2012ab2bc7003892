package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/domain"
)

// Authenticator resolves an access token to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Principal, error)
}

// AuthOption configures the Auth middleware.
type AuthOption func(*authOptions)

type authOptions struct {
	errs   httputil.ErrorWriter
	opaque bool
}

// WithErrorWriter sets how unexpected failures are logged.
func WithErrorWriter(ew httputil.ErrorWriter) AuthOption {
	return func(o *authOptions) {
		o.errs = ew
	}
}

// WithOpaqueErrors replies "access denied" to every authentication failure
// so callers cannot tell an expired token from a revoked session.
func WithOpaqueErrors() AuthOption {
	return func(o *authOptions) {
		o.opaque = true
	}
}

// Auth creates middleware that authenticates the access token and attaches
// the principal to the request context.
// Checks the token cookie first, then the Authorization header.
func Auth(authn Authenticator, opts ...AuthOption) func(http.Handler) http.Handler {
	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				o.fail(w, r, domain.ErrTokenMissing)
				return
			}

			principal, err := authn.Authenticate(r.Context(), tokenString)
			if err != nil {
				o.fail(w, r, err)
				return
			}

			ctx := auth.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (o authOptions) fail(w http.ResponseWriter, r *http.Request, err error) {
	if o.opaque && domain.KindOf(err) != domain.KindInternal {
		denied(w, http.StatusUnauthorized)
		return
	}
	o.errs.Write(w, r, err)
}

func denied(w http.ResponseWriter, status int) {
	code := "UNAUTHORIZED"
	if status == http.StatusForbidden {
		code = domain.KindForbidden.Code()
	}
	httputil.ErrorCode(w, status, code, "access denied")
}

// ExtractToken returns the access token from the token cookie or the
// Authorization header, or an empty string.
func ExtractToken(r *http.Request) string {
	// Web clients
	if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
		return token
	}

	// Mobile clients and API calls
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// RequireRole rejects principals that hold none of the roles. It must run
// after Auth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				denied(w, http.StatusUnauthorized)
				return
			}
			if !principal.User.HasRole(roles...) {
				denied(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) (*auth.Principal, bool) {
	return auth.PrincipalFromContext(ctx)
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.User.ID, true
}

// GetSessionID extracts the current session ID from the request context.
func GetSessionID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.SessionID, true
}
