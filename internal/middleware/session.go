package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/metrics"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/permission"
	"github.com/iliyamo/content-platform/internal/repository"
	"github.com/iliyamo/content-platform/internal/utils"
)

// Cookie names of the session tokens.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// AccessVerifier is the part of the token service the guard needs.
type AccessVerifier interface {
	VerifyAccess(raw string) (*utils.Claims, error)
	DecodeExpired(raw string) (string, error)
}

// IdentityLoader loads the identity named by a token.
type IdentityLoader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// SessionGuard turns the presented access token into an identity.  The
// route table decides per route whether an identity is optional, required,
// or required with the logout exception.
type SessionGuard struct {
	tokens AccessVerifier
	users  IdentityLoader
	routes *permission.RouteTable
}

func NewSessionGuard(tokens AccessVerifier, users IdentityLoader, routes *permission.RouteTable) *SessionGuard {
	return &SessionGuard{tokens: tokens, users: users, routes: routes}
}

// Middleware dispatches on the access class of the matched route.  Paths
// matching no route are treated as protected.
func (g *SessionGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route, _ := g.routes.Lookup(c.Request().Method, c.Path())
			var err error
			switch route.Access {
			case permission.System:
				return next(c)
			case permission.Public:
				g.ResolveIfPresent(c)
			case permission.Logout:
				err = g.requireForLogout(c)
			default:
				err = g.RequireIdentity(c)
			}
			if err != nil {
				return err
			}
			return next(c)
		}
	}
}

// ResolveIfPresent attaches the identity of a valid token and otherwise
// leaves the request anonymous.  It never fails.
func (g *SessionGuard) ResolveIfPresent(c echo.Context) {
	raw := tokenFrom(c)
	if raw == "" {
		return
	}
	if u, err := g.authenticate(c.Request().Context(), raw); err == nil {
		SetIdentity(c, u)
	}
}

// RequireIdentity attaches the identity of the presented token or fails.
// Missing, malformed and expired tokens and unknown identities are
// Unauthenticated; a disabled identity is Forbidden.
func (g *SessionGuard) RequireIdentity(c echo.Context) error {
	raw := tokenFrom(c)
	if raw == "" {
		return failed(apperr.Unauthorized(apperr.ReasonMissing, "unauthorized request"))
	}
	u, err := g.authenticate(c.Request().Context(), raw)
	if err != nil {
		return failed(err)
	}
	SetIdentity(c, u)
	return nil
}

// requireForLogout also accepts an expired but correctly signed token.  The
// identity is then a stub carrying only the id, enough to revoke the
// session.
func (g *SessionGuard) requireForLogout(c echo.Context) error {
	err := g.RequireIdentity(c)
	if err == nil || apperr.ReasonOf(err) != apperr.ReasonExpired {
		return err
	}
	id, derr := g.tokens.DecodeExpired(tokenFrom(c))
	if derr != nil {
		return derr
	}
	SetIdentity(c, &model.User{ID: id})
	return nil
}

func (g *SessionGuard) authenticate(ctx context.Context, raw string) (*model.User, error) {
	claims, err := g.tokens.VerifyAccess(raw)
	if err != nil {
		return nil, err
	}
	u, err := g.users.GetByID(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized(apperr.ReasonUnknown, "invalid access token")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "could not load user", err)
	}
	if u.IsDisabled {
		return nil, apperr.New(apperr.Forbidden, "your account has been disabled")
	}
	return u, nil
}

// failed records a guard rejection before it is returned.
func failed(err error) error {
	reason := apperr.ReasonOf(err)
	switch {
	case apperr.Is(err, apperr.Forbidden):
		reason = "disabled"
	case reason == "":
		reason = strings.ToLower(apperr.KindOf(err).String())
	}
	metrics.SessionFailure(reason)
	return err
}

// tokenFrom reads the access token from its cookie, falling back to the
// Authorization bearer header.
func tokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if raw, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}
