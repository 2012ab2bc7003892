package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/storefront-api/pkg/domain"
)

const (
	// Default token lifetimes
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	DefaultIssuer = "storefront"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenConfig holds token issuer configuration.
type TokenConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// Now overrides the clock used for issuing and verifying. Defaults to time.Now.
	Now func() time.Time
}

// Claims represents the claims carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string    `json:"sid"`
	Type      TokenType `json:"typ"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Session parses the session claim.
func (c *Claims) Session() (uuid.UUID, error) {
	return uuid.Parse(c.SessionID)
}

// TokenIssuer signs and verifies access and refresh tokens with a single
// process-wide HMAC secret.
type TokenIssuer struct {
	config TokenConfig
}

// NewTokenIssuer creates a new token issuer.
func NewTokenIssuer(config TokenConfig) *TokenIssuer {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TokenIssuer{config: config}
}

// AccessTokenTTL returns the access token TTL.
func (i *TokenIssuer) AccessTokenTTL() time.Duration {
	return i.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (i *TokenIssuer) RefreshTokenTTL() time.Duration {
	return i.config.RefreshTokenTTL
}

// Issue creates a new access/refresh token pair bound to the user and session.
func (i *TokenIssuer) Issue(userID, sessionID uuid.UUID) (*domain.TokenPair, error) {
	now := i.config.Now()
	accessExpiry := now.Add(i.config.AccessTokenTTL)
	refreshExpiry := now.Add(i.config.RefreshTokenTTL)

	accessToken, err := i.sign(userID, sessionID, TokenTypeAccess, now, accessExpiry)
	if err != nil {
		return nil, err
	}
	refreshToken, err := i.sign(userID, sessionID, TokenTypeRefresh, now, refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(i.config.AccessTokenTTL.Seconds()),
		ExpiresAt:        accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func (i *TokenIssuer) sign(userID, sessionID uuid.UUID, typ TokenType, now, expiry time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			Issuer:    i.config.Issuer,
			ID:        uuid.NewString(),
		},
		SessionID: sessionID.String(),
		Type:      typ,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.Secret)
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "sign token", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its claims.
func (i *TokenIssuer) VerifyAccess(tokenString string) (*Claims, error) {
	return i.verify(tokenString, TokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (i *TokenIssuer) VerifyRefresh(tokenString string) (*Claims, error) {
	return i.verify(tokenString, TokenTypeRefresh)
}

// verify fails closed: expiry maps to ErrTokenExpired, everything else to
// ErrInvalidToken.
func (i *TokenIssuer) verify(tokenString string, want TokenType) (*Claims, error) {
	if tokenString == "" {
		return nil, domain.ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return i.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.config.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	if claims.Type != want {
		return nil, domain.ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, domain.ErrInvalidToken
	}
	if _, err := claims.Session(); err != nil {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

// HashToken returns the SHA-256 fingerprint stored for refresh tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
