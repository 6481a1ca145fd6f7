package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/permission"
)

func newPermissionServer(identity *model.User) *echo.Echo {
	table := permission.NewRouteTable("/api/v1", []permission.Route{
		{Method: http.MethodGet, Resource: "user", Action: "allUsers"},
		{Method: http.MethodPatch, Resource: "tweet", Action: "updateTweet", WithID: true},
		{Method: http.MethodGet, Resource: "tweet", Action: "getAllTweets", Access: permission.Public},
		{Method: http.MethodGet, Path: "/metrics", Access: permission.System},
	})

	e := echo.New()
	e.HTTPErrorHandler = errorJSON
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if identity != nil {
				SetIdentity(c, identity)
			}
			return next(c)
		}
	})
	e.Use(RequirePermission(permission.NewResolver(permission.DefaultMatrix()), table))

	decision := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]bool{"provisional": CurrentDecision(c).Provisional})
	}
	e.GET("/api/v1/user/allUsers", decision)
	e.PATCH("/api/v1/tweet/updateTweet/:id", decision)
	e.GET("/api/v1/tweet/getAllTweets", decision)
	e.GET("/metrics", decision)
	return e
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRequirePermission(t *testing.T) {
	user := &model.User{ID: "u1", Role: model.RoleUser}
	mod := &model.User{ID: "m1", Role: model.RoleModerator}

	cases := []struct {
		name     string
		identity *model.User
		method   string
		path     string
		code     int
		body     string
	}{
		{"user cannot list users", user, http.MethodGet, "/api/v1/user/allUsers", http.StatusForbidden, ""},
		{"moderator lists users", mod, http.MethodGet, "/api/v1/user/allUsers", http.StatusOK, `{"provisional":false}`},
		{"anonymous protected", nil, http.MethodGet, "/api/v1/user/allUsers", http.StatusUnauthorized, ""},
		{"owner grant is provisional", user, http.MethodPatch, "/api/v1/tweet/updateTweet/abc", http.StatusOK, `{"provisional":true}`},
		{"public feed", nil, http.MethodGet, "/api/v1/tweet/getAllTweets", http.StatusOK, `{"provisional":false}`},
		{"system route", nil, http.MethodGet, "/metrics", http.StatusOK, `{"provisional":false}`},
		// unmatched paths are parsed and resolved before routing fails
		{"unknown resource", user, http.MethodGet, "/api/v1/nope/list", http.StatusForbidden, ""},
		{"public entry of unregistered route", nil, http.MethodGet, "/api/v1/video/getAllVideos", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(newPermissionServer(tc.identity), tc.method, tc.path)
			assert.Equal(t, tc.code, rec.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rec.Body.String())
			}
		})
	}
}
