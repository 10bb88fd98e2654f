package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// refreshTokenBytes is the entropy of a refresh token (256 bits).
const refreshTokenBytes = 32

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies access tokens and mints refresh tokens.
type TokenCodec struct {
	secret       []byte
	accessExpiry time.Duration
	refreshTTL   time.Duration
	now          func() time.Time
}

// NewTokenCodec creates a codec signing HS256 access tokens with secret.
func NewTokenCodec(secret string, accessExpiry, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		refreshTTL:   refreshTTL,
		now:          time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (c *TokenCodec) AccessTokenTTL() time.Duration {
	return c.accessExpiry
}

// IssueAccessToken signs a token for the user, valid for the access expiry.
func (c *TokenCodec) IssueAccessToken(userID, email string) (string, error) {
	now := c.now().UTC().Truncate(time.Second)
	claims := &accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, algorithm and expiry with no leeway.
// Every failure wraps apperrors.ErrInvalidToken.
func (c *TokenCodec) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify access token: %w: %w", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("verify access token: %w: incomplete claims", apperrors.ErrInvalidToken)
	}

	return &Claims{
		UserID:    claims.Subject,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueRefreshToken returns a random URL-safe token carrying no user data.
func (c *TokenCodec) IssueRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashRefreshToken returns the hex SHA-256 digest used as the ledger key.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenExpiry returns the absolute expiry for a refresh token issued now.
func (c *TokenCodec) RefreshTokenExpiry() time.Time {
	return c.now().UTC().Add(c.refreshTTL)
}
