package utils // package utils provides helper functions for token signing and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload carried by both access and refresh tokens.  The
// identity fields are copied from the user at signing time; RegisteredClaims
// supplies iat, exp and a random jti so that two tokens minted for the same
// user in the same second are still different strings.
type Claims struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT together with its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

var ErrEmptySecret = errors.New("jwt: empty signing secret")

// SignToken signs claims with HS256.  now and ttl fill iat and exp; a fresh
// jti is always generated.
func SignToken(secret string, claims Claims, now time.Time, ttl time.Duration) (SignedToken, error) {
	if secret == "" {
		return SignedToken{}, ErrEmptySecret
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseToken verifies raw with secret and returns its claims.  Only HS256 is
// accepted.  Extra parser options (a time source, skipping claim validation)
// are appended by the caller.
func ParseToken(secret, raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}, opts...)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Only the hash is stored, so a leaked users table does not hand out
// live sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
