package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
	"github.com/tendant/storefront-api/pkg/repository"
)

func TestHashPassword_Format(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	other, _ := HashPassword("correct horse battery staple")
	if hash == other {
		t.Error("two hashes of the same password should use different salts")
	}
}

func TestPasswordHashing_CaseSensitive(t *testing.T) {
	password := "TestPassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{
			name:     "exact match",
			password: "TestPassword123",
			want:     true,
		},
		{
			name:     "lowercase",
			password: "testpassword123",
			want:     false,
		},
		{
			name:     "uppercase",
			password: "TESTPASSWORD123",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyPassword(tt.password, hash)
			if got != tt.want {
				t.Errorf("VerifyPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$",
		"$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
	}
	for _, encoded := range tests {
		if VerifyPassword("password", encoded) {
			t.Errorf("VerifyPassword accepted malformed hash %q", encoded)
		}
	}
}

func TestPasswordService_Authenticate(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUsersRepository()
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := &domain.User{ID: uuid.New(), Email: "jane@example.com", Role: domain.RoleCustomer, PasswordHash: hash}
	_ = users.Create(ctx, user)

	svc := NewPasswordService(users)

	tests := []struct {
		name     string
		email    string
		password string
		wantKind domain.Kind
		wantErr  bool
	}{
		{name: "valid credentials", email: "jane@example.com", password: "s3cret-pass"},
		{name: "email is case-insensitive", email: "  Jane@Example.com ", password: "s3cret-pass"},
		{name: "wrong password", email: "jane@example.com", password: "nope", wantErr: true, wantKind: domain.KindInvalidCredentials},
		{name: "unknown user", email: "bob@example.com", password: "s3cret-pass", wantErr: true, wantKind: domain.KindInvalidCredentials},
		{name: "invalid email", email: "not-an-email", password: "s3cret-pass", wantErr: true, wantKind: domain.KindValidation},
		{name: "empty password", email: "jane@example.com", password: "", wantErr: true, wantKind: domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Authenticate(ctx, tt.email, tt.password)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Authenticate() should fail")
				}
				if domain.KindOf(err) != tt.wantKind {
					t.Errorf("KindOf() = %v, want %v", domain.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if got.ID != user.ID {
				t.Errorf("user = %v, want %v", got.ID, user.ID)
			}
		})
	}

	if _, err := svc.Authenticate(ctx, "jane@example.com", "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("errors.Is(ErrInvalidCredentials) = false for %v", err)
	}
}
