// Package router registers every endpoint together with its entry in the
// route table.  The table is the single description the session guard and
// the permission middleware consult, so a route cannot be served without
// being classified.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/content-platform/internal/config"
	"github.com/iliyamo/content-platform/internal/handler"
	"github.com/iliyamo/content-platform/internal/metrics"
	"github.com/iliyamo/content-platform/internal/middleware"
	"github.com/iliyamo/content-platform/internal/permission"
)

// Deps is everything Register wires together.
type Deps struct {
	Prefix   string
	Users    *handler.UserHandler
	Tweets   *handler.TweetHandler
	Tokens   middleware.AccessVerifier
	Identity middleware.IdentityLoader
	Resolver *permission.Resolver

	Redis            *redis.Client
	RateLimit        config.RateLimitConfig
	RefreshRateLimit config.RateLimitConfig
	Cache            config.CacheConfig
}

type endpoint struct {
	route   permission.Route
	handler echo.HandlerFunc
	mw      []echo.MiddlewareFunc
}

func endpoints(d Deps) []endpoint {
	u, t := d.Users, d.Tweets
	refreshLimiter := middleware.NewTokenBucket(d.RefreshRateLimit, d.Redis)
	feedCache := middleware.NewRedisCache(d.Cache, d.Redis)

	api := func(method, resource, action string, withID bool, access permission.Access, h echo.HandlerFunc, mw ...echo.MiddlewareFunc) endpoint {
		return endpoint{
			route:   permission.Route{Method: method, Resource: resource, Action: action, WithID: withID, Access: access},
			handler: h,
			mw:      mw,
		}
	}
	system := func(path string, h echo.HandlerFunc) endpoint {
		return endpoint{route: permission.Route{Method: http.MethodGet, Path: path, Access: permission.System}, handler: h}
	}
	const (
		get, post, patch, del = http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete
		pub, prot, logout     = permission.Public, permission.Protected, permission.Logout
	)

	return []endpoint{
		system("/health-check", handler.Health),
		system("/metrics", metrics.Handler()),

		api(post, "user", "register", false, pub, u.Register),
		api(post, "user", "login", false, pub, u.Login),
		api(post, "user", "refreshToken", false, pub, u.RefreshToken, refreshLimiter),
		api(post, "user", "logout", false, logout, u.Logout),
		api(get, "user", "currentUser", false, prot, u.CurrentUser),
		api(del, "user", "deleteAccount", false, prot, u.DeleteAccount),
		api(get, "user", "allUsers", false, prot, u.AllUsers),
		api(patch, "user", "updateRole", true, prot, u.UpdateRole),
		api(patch, "user", "toggleDisabled", true, prot, u.ToggleDisabled),
		api(del, "user", "deleteUser", true, prot, u.DeleteUser),

		api(post, "tweet", "createTweet", false, prot, t.CreateTweet),
		api(get, "tweet", "getAllTweets", false, pub, t.GetAllTweets, feedCache),
		api(get, "tweet", "getTweetById", true, pub, t.GetTweetByID),
		api(get, "tweet", "getMyTweets", false, prot, t.GetMyTweets),
		api(patch, "tweet", "updateTweet", true, prot, t.UpdateTweet),
		api(patch, "tweet", "updateTweetStatus", true, prot, t.UpdateTweetStatus),
		api(del, "tweet", "deleteTweet", true, prot, t.DeleteTweet),
		api(post, "tweet", "likeTweet", true, prot, t.LikeTweet),
		api(post, "tweet", "dislikeTweet", true, prot, t.DislikeTweet),
		api(post, "tweet", "repostTweet", true, prot, t.RepostTweet),
		api(get, "tweet", "moderate", false, prot, t.Moderate),
	}
}

// Register installs the request pipeline and every endpoint on e and
// returns the route table.  Order: metrics, rate limit, session guard,
// permission resolver, then per-route middleware and the handler.
func Register(e *echo.Echo, d Deps) *permission.RouteTable {
	eps := endpoints(d)
	routes := make([]permission.Route, len(eps))
	for i, ep := range eps {
		routes[i] = ep.route
	}
	table := permission.NewRouteTable(d.Prefix, routes)

	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(metrics.Middleware())
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))
	e.Use(middleware.NewSessionGuard(d.Tokens, d.Identity, table).Middleware())
	e.Use(middleware.RequirePermission(d.Resolver, table))

	for _, ep := range eps {
		e.Add(ep.route.Method, ep.route.Template(d.Prefix), ep.handler, ep.mw...)
	}
	return table
}
