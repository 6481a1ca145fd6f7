package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/metrics"
	"github.com/iliyamo/content-platform/internal/permission"
)

// RequirePermission resolves every non-system request against the matrix.
// The request is taken from the matched route; unmatched paths fall back to
// parsing the raw path.  A provisional decision is stored for the handler,
// which must still check the addressed item.
func RequirePermission(resolver *permission.Resolver, routes *permission.RouteTable) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var req permission.Request
			if route, ok := routes.Lookup(c.Request().Method, c.Path()); ok {
				if route.Access == permission.System {
					return next(c)
				}
				req = route.Request()
			} else {
				req = permission.ParsePath(c.Request().URL.Path)
			}

			d, err := resolver.Resolve(CurrentIdentity(c), req)
			if err != nil {
				resource := req.Resource
				if resource == "" {
					resource = "none"
				}
				metrics.PermissionDenied(resource)
				return err
			}
			c.Set(decisionKey, d)
			return next(c)
		}
	}
}
