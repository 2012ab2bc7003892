package storefront

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

var sessionRowColumns = []string{
	"id", "user_id", "token_hash", "created_at", "last_refreshed_at", "expires_at",
	"revoked_at", "revoked_reason", "user_agent", "ip",
}

const testSecret = "embedded-storefront-secret-0123456789"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expectSchema(mock sqlmock.Sqlmock, missing string) {
	for _, table := range requiredTables {
		q := mock.ExpectQuery("FROM information_schema.tables").WithArgs(table)
		if table == missing {
			q.WillReturnError(sql.ErrNoRows)
			return
		}
		q.WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow(table))
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "missing db", cfg: Config{JWTSecret: testSecret}, wantErr: "DB is required"},
		{name: "missing secret", cfg: Config{DB: db}, wantErr: "JWTSecret is required"},
		{name: "short secret", cfg: Config{DB: db, JWTSecret: "short"}, wantErr: "at least 32 characters"},
		{name: "negative ttl", cfg: Config{DB: db, JWTSecret: testSecret, AccessTokenTTL: -1}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_MissingTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	expectSchema(mock, "sessions")

	_, err = New(Config{DB: db, JWTSecret: testSecret, Logger: discardLogger()})
	if err == nil || !strings.Contains(err.Error(), `missing table "sessions"`) {
		t.Errorf("New() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestNew_SchemaCheckFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("users").WillReturnError(errors.New("connection reset"))

	_, err = New(Config{DB: db, JWTSecret: testSecret, Logger: discardLogger()})
	if err == nil || !strings.Contains(err.Error(), "failed to check schema") {
		t.Errorf("New() error = %v", err)
	}
}

func TestStorefront_HandlerAndMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	expectSchema(mock, "")

	sf, err := New(Config{DB: db, JWTSecret: testSecret, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	sf.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	protected := sf.AuthMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			t.Error("CurrentUser should be set behind AuthMiddleware")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	userID, sessionID := uuid.New(), uuid.New()
	pair, err := sf.SessionService().Tokens().Issue(userID, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	// A token for a session that is not in the database is rejected.
	mock.ExpectQuery("FROM sessions").WithArgs(sessionID).WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown session status = %d, want 401", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	if _, ok := CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("CurrentUser should report false without AuthMiddleware")
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestStorefront_RefreshReuseDetection(t *testing.T) {
	tests := []struct {
		name        string
		disable     bool
		wantRevoked bool
	}{
		{name: "on by default", wantRevoked: true},
		{name: "disabled by host", disable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()
			expectSchema(mock, "")

			sf, err := New(Config{DB: db, JWTSecret: testSecret, DisableReuseDetection: tt.disable, Logger: discardLogger()})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			userID, sessionID := uuid.New(), uuid.New()
			superseded, err := sf.SessionService().Tokens().Issue(userID, sessionID)
			if err != nil {
				t.Fatal(err)
			}

			// The stored fingerprint belongs to a newer refresh token.
			now := time.Now()
			mock.ExpectQuery("FROM sessions").
				WithArgs(sessionID).
				WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow(
					sessionID.String(), userID.String(), "fingerprint-of-newer-token", now, now,
					now.Add(time.Hour), nil, nil, "", ""))
			if tt.wantRevoked {
				mock.ExpectExec("UPDATE sessions").
					WithArgs(sessionID, string(domain.RevokedRotated)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			} else {
				mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)
			}

			_, err = sf.SessionService().Refresh(context.Background(), superseded.RefreshToken)
			if tt.wantRevoked && !errors.Is(err, domain.ErrSessionRevoked) {
				t.Errorf("Refresh() error = %v, want ErrSessionRevoked", err)
			}
			if !tt.wantRevoked && !errors.Is(err, domain.ErrUserNotFound) {
				t.Errorf("Refresh() error = %v, want the lookup to proceed past the fingerprint check", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Error(err)
			}
		})
	}
}
