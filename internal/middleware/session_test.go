package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/permission"
	"github.com/iliyamo/content-platform/internal/repository/memory"
	"github.com/iliyamo/content-platform/internal/service"
)

var tokenCfg = service.TokenConfig{
	AccessSecret:  "access-secret",
	AccessTTL:     15 * time.Minute,
	RefreshSecret: "refresh-secret",
	RefreshTTL:    24 * time.Hour,
}

type guardFixture struct {
	e      *echo.Echo
	users  *memory.Users
	tokens *service.TokenService
	alice  *model.User
}

// errorJSON renders failures as {"reason": ...} with the mapped status.
func errorJSON(err error, c echo.Context) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]string{})
		return
	}
	_ = c.JSON(apperr.KindOf(err).HTTPStatus(), map[string]string{"reason": apperr.ReasonOf(err)})
}

func whoami(c echo.Context) error {
	id := ""
	if u := CurrentIdentity(c); u != nil {
		id = u.ID
	}
	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	users := memory.NewUsers()
	alice := &model.User{Username: "alice", Email: "alice@example.com", Role: model.RoleUser}
	require.NoError(t, users.Create(context.Background(), alice))

	tokens := service.NewTokenService(tokenCfg, users)
	table := permission.NewRouteTable("/api/v1", []permission.Route{
		{Method: http.MethodGet, Resource: "tweet", Action: "getAllTweets", Access: permission.Public},
		{Method: http.MethodGet, Resource: "user", Action: "currentUser", Access: permission.Protected},
		{Method: http.MethodPost, Resource: "user", Action: "logout", Access: permission.Logout},
		{Method: http.MethodGet, Path: "/health-check", Access: permission.System},
	})

	e := echo.New()
	e.HTTPErrorHandler = errorJSON
	e.Use(NewSessionGuard(tokens, users, table).Middleware())
	e.GET("/api/v1/tweet/getAllTweets", whoami)
	e.GET("/api/v1/user/currentUser", whoami)
	e.POST("/api/v1/user/logout", whoami)
	e.GET("/health-check", whoami)
	return &guardFixture{e: e, users: users, tokens: tokens, alice: alice}
}

func (f *guardFixture) do(method, path string, mutate func(*http.Request)) (int, map[string]string) {
	req := httptest.NewRequest(method, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(echo.HeaderAuthorization, "Bearer "+tok) }
}

func (f *guardFixture) accessToken(t *testing.T, u *model.User) string {
	t.Helper()
	pair, err := f.tokens.IssuePair(context.Background(), u)
	require.NoError(t, err)
	return pair.AccessToken
}

func (f *guardFixture) expiredToken(t *testing.T, u *model.User) string {
	t.Helper()
	past := service.NewTokenService(tokenCfg, f.users).WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	pair, err := past.IssuePair(context.Background(), u)
	require.NoError(t, err)
	return pair.AccessToken
}

func TestRequireIdentity(t *testing.T) {
	f := newGuardFixture(t)
	good := f.accessToken(t, f.alice)

	code, body := f.do(http.MethodGet, "/api/v1/user/currentUser", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperr.ReasonMissing, body["reason"])

	code, body = f.do(http.MethodGet, "/api/v1/user/currentUser", bearer(good))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.alice.ID, body["id"])

	code, body = f.do(http.MethodGet, "/api/v1/user/currentUser", bearer("not.a.token"))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperr.ReasonMalformed, body["reason"])

	code, body = f.do(http.MethodGet, "/api/v1/user/currentUser", bearer(f.expiredToken(t, f.alice)))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperr.ReasonExpired, body["reason"])
}

func TestCookieTakesPrecedence(t *testing.T) {
	f := newGuardFixture(t)
	good := f.accessToken(t, f.alice)
	code, body := f.do(http.MethodGet, "/api/v1/user/currentUser", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: good})
		r.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.alice.ID, body["id"])
}

func TestDisabledAndUnknownIdentity(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	tok := f.accessToken(t, f.alice)

	require.NoError(t, f.users.SetDisabled(ctx, f.alice.ID, true))
	code, _ := f.do(http.MethodGet, "/api/v1/user/currentUser", bearer(tok))
	assert.Equal(t, http.StatusForbidden, code)

	// a disabled identity is simply anonymous on public routes
	code, body := f.do(http.MethodGet, "/api/v1/tweet/getAllTweets", bearer(tok))
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["id"])

	require.NoError(t, f.users.Delete(ctx, f.alice.ID))
	code, body = f.do(http.MethodGet, "/api/v1/user/currentUser", bearer(tok))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperr.ReasonUnknown, body["reason"])
}

func TestResolveIfPresent(t *testing.T) {
	f := newGuardFixture(t)

	code, body := f.do(http.MethodGet, "/api/v1/tweet/getAllTweets", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["id"])

	code, body = f.do(http.MethodGet, "/api/v1/tweet/getAllTweets", bearer("garbage"))
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["id"])

	code, body = f.do(http.MethodGet, "/api/v1/tweet/getAllTweets", bearer(f.accessToken(t, f.alice)))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.alice.ID, body["id"])
}

func TestLogoutAcceptsExpiredToken(t *testing.T) {
	f := newGuardFixture(t)

	code, body := f.do(http.MethodPost, "/api/v1/user/logout", bearer(f.expiredToken(t, f.alice)))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.alice.ID, body["id"])

	// the exception is limited to logout
	code, _ = f.do(http.MethodGet, "/api/v1/user/currentUser", bearer(f.expiredToken(t, f.alice)))
	assert.Equal(t, http.StatusUnauthorized, code)

	// a forged token is still rejected
	forged := service.NewTokenService(service.TokenConfig{
		AccessSecret: "other", AccessTTL: time.Minute, RefreshSecret: "other", RefreshTTL: time.Minute,
	}, f.users).WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	pair, err := forged.IssuePair(context.Background(), f.alice)
	require.NoError(t, err)
	code, body = f.do(http.MethodPost, "/api/v1/user/logout", bearer(pair.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, apperr.ReasonMalformed, body["reason"])

	code, _ = f.do(http.MethodPost, "/api/v1/user/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSystemRoutesBypassGuard(t *testing.T) {
	f := newGuardFixture(t)
	code, _ := f.do(http.MethodGet, "/health-check", bearer("garbage"))
	assert.Equal(t, http.StatusOK, code)
}
