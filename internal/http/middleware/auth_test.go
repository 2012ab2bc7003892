package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/auth"
	"github.com/tendant/storefront-api/pkg/domain"
)

type fakeAuthenticator struct {
	principals map[string]*auth.Principal
	err        error
	seen       []string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*auth.Principal, error) {
	f.seen = append(f.seen, token)
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.principals[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return p, nil
}

func newPrincipal(role domain.Role) *auth.Principal {
	return &auth.Principal{
		User:      &domain.User{ID: uuid.New(), Role: role},
		SessionID: uuid.New(),
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestAuth(t *testing.T) {
	customer := newPrincipal(domain.RoleCustomer)
	authn := &fakeAuthenticator{principals: map[string]*auth.Principal{"good": customer}}

	var got *auth.Principal
	handler := Auth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetPrincipal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "cookie", cookie: "good", wantStatus: http.StatusOK},
		{name: "bearer header", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
		{name: "cookie wins over header", cookie: "good", header: "Bearer bad", wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_MISSING"},
		{name: "non-bearer scheme", header: "Basic Zm9vOmJhcg==", wantStatus: http.StatusUnauthorized, wantCode: "TOKEN_MISSING"},
		{name: "invalid", header: "Bearer bad", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: httputil.AccessTokenCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if got != customer {
					t.Error("principal not attached to context")
				}
				return
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuth_ErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"expired", domain.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"revoked", domain.ErrSessionRevoked, http.StatusUnauthorized, "SESSION_REVOKED"},
		{"user gone", domain.ErrUserNotFound, http.StatusUnauthorized, "USER_NOT_FOUND"},
		{"store down", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := &fakeAuthenticator{err: tt.err}
			handler := Auth(authn, WithErrorWriter(httputil.ErrorWriter{Logger: discardLogger()}))(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", "Bearer whatever")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := decodeError(t, w); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuth_OpaqueErrors(t *testing.T) {
	for _, err := range []error{domain.ErrTokenExpired, domain.ErrSessionRevoked, domain.ErrInvalidToken} {
		authn := &fakeAuthenticator{err: err}
		handler := Auth(authn, WithOpaqueErrors())(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/api/admin/users/x/sessions", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", err, w.Code)
		}
		if body := decodeError(t, w); body.Error != "access denied" || body.Code != "UNAUTHORIZED" {
			t.Errorf("%v: body = %+v, want opaque access denied", err, body)
		}
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		principal  *auth.Principal
		wantStatus int
	}{
		{"admin allowed", newPrincipal(domain.RoleAdmin), http.StatusOK},
		{"manager allowed", newPrincipal(domain.RoleManager), http.StatusOK},
		{"customer forbidden", newPrincipal(domain.RoleCustomer), http.StatusForbidden},
		{"no principal", nil, http.StatusUnauthorized},
	}

	handler := RequireRole(domain.RoleAdmin, domain.RoleManager)(okHandler())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users/x/sessions", nil)
			if tt.principal != nil {
				req = req.WithContext(auth.ContextWithPrincipal(req.Context(), tt.principal))
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code != http.StatusOK {
				if body := decodeError(t, w); body.Error != "access denied" {
					t.Errorf("error = %q, want access denied", body.Error)
				}
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	p := newPrincipal(domain.RoleCustomer)
	ctx := auth.ContextWithPrincipal(context.Background(), p)

	if id, ok := GetUserID(ctx); !ok || id != p.User.ID {
		t.Errorf("GetUserID() = %v, %v", id, ok)
	}
	if id, ok := GetSessionID(ctx); !ok || id != p.SessionID {
		t.Errorf("GetSessionID() = %v, %v", id, ok)
	}
	if _, ok := GetUserID(context.Background()); ok {
		t.Error("GetUserID() on empty context should fail")
	}
}
