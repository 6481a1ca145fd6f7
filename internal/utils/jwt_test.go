package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseToken(t *testing.T) {
	now := time.Now()
	tok, err := SignToken("s3cret", Claims{ID: "u1", Email: "a@b.c", Username: "alice", FullName: "Alice"}, now, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Minute), tok.Exp, time.Second)

	c, err := ParseToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.ID)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, "Alice", c.FullName)
	assert.NotEmpty(t, c.RegisteredClaims.ID)
}

func TestSignTokenUniqueJTI(t *testing.T) {
	now := time.Now()
	a, err := SignToken("k", Claims{ID: "u1"}, now, time.Hour)
	require.NoError(t, err)
	b, err := SignToken("k", Claims{ID: "u1"}, now, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tok, err := SignToken("k1", Claims{ID: "u1"}, time.Now(), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("k2", tok.Token)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestParseTokenExpired(t *testing.T) {
	tok, err := SignToken("k", Claims{ID: "u1"}, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("k", tok.Token)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))

	c, err := ParseToken("k", tok.Token, jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	assert.Equal(t, "u1", c.ID)
}

func TestSignTokenEmptySecret(t *testing.T) {
	_, err := SignToken("", Claims{ID: "u1"}, time.Now(), time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestHashRefreshRaw(t *testing.T) {
	assert.Equal(t, HashRefreshRaw("x"), HashRefreshRaw("x"))
	assert.NotEqual(t, HashRefreshRaw("x"), HashRefreshRaw("y"))
	assert.Len(t, HashRefreshRaw("x"), 64)
}

func TestPasswordRoundTrip(t *testing.T) {
	h, err := HashPassword("pa55word", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "pa55word"))
	assert.False(t, VerifyPassword(h, "nope"))

	h, err = HashPassword("pa55word", 99)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "pa55word"))
}
