package middleware

// identity.go holds the context accessors shared by the session guard, the
// permission middleware and the handlers.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/permission"
)

const (
	identityKey = "identity"
	decisionKey = "permission"
)

// SetIdentity attaches u to the request.
func SetIdentity(c echo.Context, u *model.User) { c.Set(identityKey, u) }

// CurrentIdentity returns the identity attached by the session guard, or nil
// for anonymous requests.
func CurrentIdentity(c echo.Context) *model.User {
	u, _ := c.Get(identityKey).(*model.User)
	return u
}

// CurrentDecision returns the permission decision of the request.  The zero
// Decision is returned when the resolver did not run.
func CurrentDecision(c echo.Context) permission.Decision {
	d, _ := c.Get(decisionKey).(permission.Decision)
	return d
}

// userID returns the id of the current identity or "anon".
func userID(c echo.Context) string {
	if u := CurrentIdentity(c); u != nil && u.ID != "" {
		return u.ID
	}
	return "anon"
}
