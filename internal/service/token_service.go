// Package service holds the token service and the moderation event
// publisher.  Both sit between the HTTP handlers and the stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/metrics"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/repository"
	"github.com/iliyamo/content-platform/internal/utils"
)

// TokenConfig carries the secrets and lifetimes of both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// RefreshStore is the part of the credential store the token service needs.
// SwapRefreshToken must be atomic: it succeeds only if current is still the
// stored value.
type RefreshStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	SetRefreshToken(ctx context.Context, id, hash string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
}

// TokenPair is what login and renewal hand back to the client.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	AccessExp    time.Time `json:"accessTokenExpiresAt"`
	RefreshToken string    `json:"refreshToken"`
	RefreshExp   time.Time `json:"refreshTokenExpiresAt"`
}

// TokenService signs, verifies, rotates and revokes tokens.  The only server
// side session state is the hash of the current refresh token stored on the
// identity; every other check is stateless.
type TokenService struct {
	cfg   TokenConfig
	store RefreshStore
	now   func() time.Time
}

func NewTokenService(cfg TokenConfig, store RefreshStore) *TokenService {
	return &TokenService{cfg: cfg, store: store, now: time.Now}
}

// WithClock replaces the time source used for signing and expiry checks.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// AccessTTL and RefreshTTL drive cookie lifetimes.
func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func claimsFor(u *model.User) utils.Claims {
	return utils.Claims{ID: u.ID, Email: u.Email, Username: u.Username, FullName: u.FullName}
}

func (s *TokenService) sign(u *model.User) (TokenPair, error) {
	now := s.now()
	access, err := utils.SignToken(s.cfg.AccessSecret, claimsFor(u), now, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := utils.SignToken(s.cfg.RefreshSecret, claimsFor(u), now, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	metrics.TokenIssued("access")
	metrics.TokenIssued("refresh")
	return TokenPair{
		AccessToken:  access.Token,
		AccessExp:    access.Exp,
		RefreshToken: refresh.Token,
		RefreshExp:   refresh.Exp,
	}, nil
}

// IssuePair signs a new access/refresh pair for u and makes the refresh
// token the only one honoured for u from now on.
func (s *TokenService) IssuePair(ctx context.Context, u *model.User) (TokenPair, error) {
	pair, err := s.sign(u)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "could not issue tokens", err)
	}
	if err := s.store.SetRefreshToken(ctx, u.ID, utils.HashRefreshRaw(pair.RefreshToken)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, apperr.Unauthorized(apperr.ReasonUnknown, "user no longer exists")
		}
		return TokenPair{}, apperr.Wrap(apperr.Internal, "could not persist refresh token", err)
	}
	return pair, nil
}

func (s *TokenService) parse(secret, raw string, opts ...jwt.ParserOption) (*utils.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.Unauthorized(apperr.ReasonMissing, "token is missing")
	}
	opts = append(opts, jwt.WithTimeFunc(s.now))
	claims, err := utils.ParseToken(secret, raw, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Unauthorized(apperr.ReasonExpired, "token has expired")
	default:
		return nil, &apperr.Error{Kind: apperr.Unauthenticated, Message: "invalid token", Reason: apperr.ReasonMalformed, Err: err}
	}
	if claims.ID == "" {
		return nil, apperr.Unauthorized(apperr.ReasonMalformed, "invalid token")
	}
	return claims, nil
}

// VerifyAccess checks an access token and returns its claims.  Failures are
// Unauthenticated with reason expired or malformed.
func (s *TokenService) VerifyAccess(raw string) (*utils.Claims, error) {
	return s.parse(s.cfg.AccessSecret, raw)
}

// DecodeExpired verifies the signature of an access token but skips claim
// validation, so an expired token still yields its identity id.  It is only
// meant for the logout route.
func (s *TokenService) DecodeExpired(raw string) (string, error) {
	claims, err := s.parse(s.cfg.AccessSecret, raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}

// VerifyRefresh checks a refresh token against the value stored on its
// identity.  A correctly signed token that is no longer the stored one is
// stale.
func (s *TokenService) VerifyRefresh(ctx context.Context, raw string) (*model.User, error) {
	claims, err := s.parse(s.cfg.RefreshSecret, raw)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetByID(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized(apperr.ReasonUnknown, "user no longer exists")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load user", err)
	}
	if u.RefreshTokenHash == "" || u.RefreshTokenHash != utils.HashRefreshRaw(strings.TrimSpace(raw)) {
		return nil, apperr.Unauthorized(apperr.ReasonStale, "refresh token is expired or used")
	}
	return u, nil
}

// Refresh verifies raw and rotates it.  The rotation is a compare-and-swap on
// the stored hash: when two renewals race with the same token, exactly one
// wins and the other fails as stale.  There is no retry.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*model.User, TokenPair, error) {
	u, err := s.VerifyRefresh(ctx, raw)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if u.IsDisabled {
		return nil, TokenPair{}, apperr.New(apperr.Forbidden, "account is disabled")
	}
	pair, err := s.sign(u)
	if err != nil {
		return nil, TokenPair{}, apperr.Wrap(apperr.Internal, "could not issue tokens", err)
	}
	ok, err := s.store.SwapRefreshToken(ctx, u.ID, u.RefreshTokenHash, utils.HashRefreshRaw(pair.RefreshToken))
	if err != nil {
		return nil, TokenPair{}, apperr.Wrap(apperr.Internal, "could not rotate refresh token", err)
	}
	if !ok {
		return nil, TokenPair{}, apperr.Unauthorized(apperr.ReasonStale, "refresh token is expired or used")
	}
	return u, pair, nil
}

// Revoke clears the stored refresh token of id.  Revoking an identity that
// no longer exists is not an error.
func (s *TokenService) Revoke(ctx context.Context, id string) error {
	err := s.store.SetRefreshToken(ctx, id, "")
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperr.Wrap(apperr.Internal, "could not revoke refresh token", err)
	}
	return nil
}
