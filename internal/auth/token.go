package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/btcutil/base58"
	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned for malformed, forged or expired tokens.
var ErrTokenInvalid = errors.New("invalid token")

// Claims are carried by session access tokens. The JWT id is the session id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SessionID returns the session the token was issued for.
func (c *Claims) SessionID() string {
	return c.ID
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
}

// NewTokenIssuer returns an issuer. An empty key is replaced with a random
// one, which invalidates tokens on restart.
func NewTokenIssuer(key string, ttl time.Duration, issuer string, clk clock.Clock) (*TokenIssuer, error) {
	k := []byte(key)
	if len(k) == 0 {
		k = make([]byte, 32)
		if _, err := rand.Read(k); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &TokenIssuer{key: k, ttl: ttl, issuer: issuer, clock: clk}, nil
}

// TTL is the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the session and returns it with its expiry.
func (t *TokenIssuer) Issue(userID, email, sessionID string) (string, time.Time, error) {
	now := t.clock.Now().UTC().Truncate(time.Second)
	expires := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (t *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or session id", ErrTokenInvalid)
	}
	return claims, nil
}

// HashToken returns the SHA256 hex digest stored in place of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResetTokenLength is the number of random bytes in a reset token.
const ResetTokenLength = 24

// GenerateResetToken returns a base58 reset token and its storage hash.
func GenerateResetToken() (string, string, error) {
	b := make([]byte, ResetTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate reset token: %w", err)
	}
	token := base58.Encode(b)
	return token, HashToken(token), nil
}
