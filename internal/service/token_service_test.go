package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/repository/memory"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTokenFixture(t *testing.T) (*TokenService, *memory.Users, *model.User, *fixedClock) {
	t.Helper()
	users := memory.NewUsers()
	u := &model.User{Username: "alice", Email: "alice@example.com", FullName: "Alice"}
	require.NoError(t, users.Create(context.Background(), u))
	clock := &fixedClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewTokenService(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    10 * 24 * time.Hour,
	}, users).WithClock(clock.Now)
	return svc, users, u, clock
}

func TestIssuePairRoundTrip(t *testing.T) {
	svc, _, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(context.Background(), u)
	require.NoError(t, err)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, u.Username, claims.Username)

	got, err := svc.VerifyRefresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAccessTokenNotAcceptedAsRefresh(t *testing.T) {
	svc, _, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(context.Background(), u)
	require.NoError(t, err)

	_, err = svc.VerifyRefresh(context.Background(), pair.AccessToken)
	assert.Equal(t, apperr.ReasonMalformed, apperr.ReasonOf(err))
	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.Equal(t, apperr.ReasonMalformed, apperr.ReasonOf(err))
}

func TestVerifyAccessFailures(t *testing.T) {
	svc, _, u, clock := newTokenFixture(t)
	pair, err := svc.IssuePair(context.Background(), u)
	require.NoError(t, err)

	_, err = svc.VerifyAccess("")
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
	assert.Equal(t, apperr.ReasonMissing, apperr.ReasonOf(err))

	_, err = svc.VerifyAccess("not.a.jwt")
	assert.Equal(t, apperr.ReasonMalformed, apperr.ReasonOf(err))

	clock.Advance(16 * time.Minute)
	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
	assert.Equal(t, apperr.ReasonExpired, apperr.ReasonOf(err))
}

func TestDecodeExpiredChecksSignature(t *testing.T) {
	svc, _, u, clock := newTokenFixture(t)
	pair, err := svc.IssuePair(context.Background(), u)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	id, err := svc.DecodeExpired(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	forged := tamper(pair.AccessToken)
	_, err = svc.DecodeExpired(forged)
	assert.Equal(t, apperr.ReasonMalformed, apperr.ReasonOf(err))
}

func TestRefreshRotatesAndOldTokenIsStale(t *testing.T) {
	ctx := context.Background()
	svc, _, u, _ := newTokenFixture(t)
	first, err := svc.IssuePair(ctx, u)
	require.NoError(t, err)

	_, second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.VerifyRefresh(ctx, first.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
	assert.Equal(t, apperr.ReasonStale, apperr.ReasonOf(err))

	_, _, err = svc.Refresh(ctx, first.RefreshToken)
	assert.Equal(t, apperr.ReasonStale, apperr.ReasonOf(err))

	got, err := svc.VerifyRefresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(ctx, u)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.Unauthenticated))
		assert.Equal(t, apperr.ReasonStale, apperr.ReasonOf(err))
	}
	assert.Equal(t, 1, wins)
}

func TestRevokeInvalidatesRefresh(t *testing.T) {
	ctx := context.Background()
	svc, _, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(ctx, u)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, u.ID))
	_, err = svc.VerifyRefresh(ctx, pair.RefreshToken)
	assert.Equal(t, apperr.ReasonStale, apperr.ReasonOf(err))

	assert.NoError(t, svc.Revoke(ctx, "does-not-exist"))
}

func TestVerifyRefreshUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	svc, users, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(ctx, u)
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, u.ID))

	_, err = svc.VerifyRefresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.Unauthenticated))
}

func TestRefreshDisabledIdentity(t *testing.T) {
	ctx := context.Background()
	svc, users, u, _ := newTokenFixture(t)
	pair, err := svc.IssuePair(ctx, u)
	require.NoError(t, err)

	// disabling clears the stored token, so restore it to reach the flag check
	require.NoError(t, users.SetDisabled(ctx, u.ID, true))
	pair, err = svc.IssuePair(ctx, u)
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperr.Is(err, apperr.Forbidden))
}

// tamper changes a fully significant character of the signature segment.
func tamper(tok string) string {
	b := []byte(tok)
	i := len(b) - 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
