package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
)

func ident(role model.Role) *model.User { return &model.User{ID: "u-" + string(role), Role: role} }

func TestResolve(t *testing.T) {
	r := NewResolver(DefaultMatrix())
	user, mod, admin := ident(model.RoleUser), ident(model.RoleModerator), ident(model.RoleAdmin)

	cases := []struct {
		name        string
		who         *model.User
		req         Request
		kind        apperr.Kind // Internal means allowed
		provisional bool
	}{
		{"public login anonymous", nil, Request{"user", "login", false}, apperr.Internal, false},
		{"public tweet by id", nil, Request{"tweet", "getTweetById", true}, apperr.Internal, false},
		{"anonymous protected", nil, Request{"user", "currentUser", false}, apperr.Unauthenticated, false},
		{"anonymous unknown action", nil, Request{"tweet", "nope", false}, apperr.Unauthenticated, false},
		{"authenticated action", user, Request{"user", "currentUser", false}, apperr.Internal, false},
		{"authenticated id action", user, Request{"tweet", "likeTweet", true}, apperr.Internal, false},
		{"user cannot list users", user, Request{"user", "allUsers", false}, apperr.Forbidden, false},
		{"moderator lists users", mod, Request{"user", "allUsers", false}, apperr.Internal, false},
		{"moderator toggles disabled", mod, Request{"user", "toggleDisabled", true}, apperr.Internal, false},
		{"moderator id fallback", mod, Request{"user", "updateRole", true}, apperr.Internal, true},
		{"user cannot change role", user, Request{"user", "updateRole", true}, apperr.Forbidden, false},
		{"admin changes role", admin, Request{"user", "updateRole", true}, apperr.Internal, false},
		{"owner update is provisional", user, Request{"tweet", "updateTweet", true}, apperr.Internal, true},
		{"moderator update not provisional", mod, Request{"tweet", "updateTweet", true}, apperr.Internal, false},
		{"user moderation queue", user, Request{"tweet", "moderate", false}, apperr.Forbidden, false},
		{"moderator moderation queue", mod, Request{"tweet", "moderate", false}, apperr.Internal, false},
		{"user id fallback through owner set", user, Request{"tweet", "updateTweetStatus", true}, apperr.Internal, true},
		{"user without id entries", user, Request{"subscription", "unknown", true}, apperr.Forbidden, false},
		{"user without id", user, Request{"tweet", "updateTweetStatus", false}, apperr.Forbidden, false},
		{"unknown resource", user, Request{"channel", "x", false}, apperr.Forbidden, false},
		{"unknown resource anonymous", nil, Request{"channel", "x", false}, apperr.Forbidden, false},
		{"empty path", user, Request{}, apperr.Forbidden, false},
		{"admin unknown resource", admin, Request{"channel", "x", false}, apperr.Internal, false},
		{"id form without id", user, Request{"tweet", "updateTweet", false}, apperr.Forbidden, false},
		{"video owner delete", user, Request{"video", "deleteVideo", true}, apperr.Internal, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := r.Resolve(tc.who, tc.req)
			if tc.kind == apperr.Internal {
				require.NoError(t, err)
				assert.Equal(t, tc.provisional, d.Provisional)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestDefaultMatrixCoversResourceTypes(t *testing.T) {
	m := DefaultMatrix()
	for _, res := range []string{"user", "tweet", "video", "comment", "playlist", "subscription", "like"} {
		assert.Contains(t, m, res)
	}
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, Request{"user", "login", false}, ParsePath("/api/v1/user/login"))
	assert.Equal(t, Request{"tweet", "getTweetById", true}, ParsePath("/api/v2/tweet/getTweetById/123"))
	assert.Equal(t, Request{"user", "", false}, ParsePath("/user"))
	assert.Equal(t, Request{}, ParsePath("/api/v1/"))
	assert.Equal(t, Request{"health-check", "", false}, ParsePath("/health-check"))
}

func TestRouteTableLookup(t *testing.T) {
	tbl := NewRouteTable("/api/v1", []Route{
		{Method: "POST", Resource: "user", Action: "login", Access: Public},
		{Method: "PATCH", Resource: "tweet", Action: "updateTweet", WithID: true},
		{Method: "GET", Path: "/health-check", Access: System},
	})
	r, ok := tbl.Lookup("PATCH", "/api/v1/tweet/updateTweet/:id")
	require.True(t, ok)
	assert.Equal(t, Request{"tweet", "updateTweet", true}, r.Request())
	assert.Equal(t, Protected, r.Access)

	_, ok = tbl.Lookup("GET", "/api/v1/tweet/updateTweet/:id")
	assert.False(t, ok)

	r, ok = tbl.Lookup("GET", "/health-check")
	require.True(t, ok)
	assert.Equal(t, System, r.Access)
}
