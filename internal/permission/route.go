package permission

import (
	"regexp"
	"strings"
)

// Access classifies how the session guard treats a route.
type Access int

const (
	// Protected routes require a valid identity.
	Protected Access = iota
	// Public routes attach an identity when one is presented but never fail.
	Public
	// Logout routes are protected, except that an expired but correctly
	// signed access token is accepted.
	Logout
	// System routes (health, metrics) bypass the guard and the resolver.
	System
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Logout:
		return "logout"
	case System:
		return "system"
	}
	return "protected"
}

// Route describes one registered endpoint.  API routes are addressed as
// <prefix>/<Resource>/<Action>[/:id]; System routes use Path verbatim.
type Route struct {
	Method   string
	Resource string
	Action   string
	WithID   bool
	Access   Access
	Path     string
}

// Request returns the resolver input of r.
func (r Route) Request() Request {
	return Request{Resource: r.Resource, Action: r.Action, HasID: r.WithID}
}

// Template returns the echo route template of r under prefix.
func (r Route) Template(prefix string) string {
	if r.Path != "" {
		return r.Path
	}
	t := strings.TrimRight(prefix, "/") + "/" + r.Resource + "/" + r.Action
	if r.WithID {
		t += "/:id"
	}
	return t
}

// RouteTable indexes routes by method and template.  It is built once at
// startup and read concurrently afterwards.
type RouteTable struct {
	prefix string
	routes []Route
	index  map[string]Route
}

// NewRouteTable indexes routes under prefix.
func NewRouteTable(prefix string, routes []Route) *RouteTable {
	t := &RouteTable{prefix: prefix, routes: routes, index: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.index[r.Method+" "+r.Template(prefix)] = r
	}
	return t
}

func (t *RouteTable) Prefix() string  { return t.prefix }
func (t *RouteTable) Routes() []Route { return t.routes }

// Lookup finds the route registered for method and the matched echo
// template (c.Path()).
func (t *RouteTable) Lookup(method, template string) (Route, bool) {
	r, ok := t.index[method+" "+template]
	return r, ok
}

var versionPrefix = regexp.MustCompile(`^/api/v[0-9]+/`)

// ParsePath derives a resolver request from a raw path.  It is the fallback
// for paths that matched no registered route: the /api/v{n} prefix is
// stripped, the first segment is the resource, the second the action and any
// further segment marks an addressed item.
func ParsePath(path string) Request {
	p := versionPrefix.ReplaceAllString(path, "/")
	segs := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	var req Request
	if len(segs) > 0 {
		req.Resource = segs[0]
	}
	if len(segs) > 1 {
		req.Action = segs[1]
	}
	req.HasID = len(segs) > 2
	return req
}
