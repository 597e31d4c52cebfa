package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/akademika-id/akademika/internal/shared"
)

// Claims is the payload embedded in the signed access token. It is derived at
// issuance and trusted only after signature and expiry verification.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: parse subject: %w", err)
	}
	return id, nil
}

// TokenIssuer mints and verifies signed access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer constructs a TokenIssuer with a symmetric signing secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL exposes the configured token and session lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue mints a signed access token and a fresh single-use refresh token for
// the user. The refresh token is random, never derived from the access token;
// persisting its hash as a session is the caller's responsibility.
func (t *TokenIssuer) Issue(user *User) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)

	claims := Claims{
		Roles: []string{user.RoleName},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign access token: %w", err)
	}

	refresh, err := NewRefreshToken()
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// Verify checks signature and expiry of an access token. It is stateless and
// never touches session storage. Malformed, forged and expired tokens all
// collapse to ErrUnauthenticated.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, shared.ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return claims, nil
}

// VerifySubject verifies a token and returns the subject user id.
func (t *TokenIssuer) VerifySubject(token string) (int64, error) {
	claims, err := t.Verify(token)
	if err != nil {
		return 0, err
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, shared.ErrUnauthenticated
	}
	return id, nil
}
