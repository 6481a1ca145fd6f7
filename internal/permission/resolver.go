package permission

import (
	"fmt"
	"strings"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
)

// Request is what the resolver decides on: a resource type, an action and
// whether the path addresses a single item.
type Request struct {
	Resource string
	Action   string
	HasID    bool
}

// Key is the matrix entry a request matches: the bare action, or the
// action followed by IDSuffix when an item is addressed.
func (r Request) Key() string {
	if r.HasID {
		return r.Action + IDSuffix
	}
	return r.Action
}

// Decision is a successful resolution.  Provisional means the grant came
// from an owner entry or the id fallback, and the handler must still check
// the addressed item.
type Decision struct {
	Provisional bool
}

// actionSet is an exact-match set of matrix entries.  withID records
// whether any entry is id-parameterized.
type actionSet struct {
	entries map[string]struct{}
	withID  bool
}

func newActionSet(actions []string) actionSet {
	s := actionSet{entries: make(map[string]struct{}, len(actions))}
	for _, a := range actions {
		s.entries[a] = struct{}{}
		if strings.HasSuffix(a, IDSuffix) {
			s.withID = true
		}
	}
	return s
}

func (s actionSet) has(a string) bool {
	_, ok := s.entries[a]
	return ok
}

type compiledSets struct {
	public, authenticated, moderator, admin, owner actionSet
}

// roleSet returns the set a role may use for id-parameterized entries.
// Plain users have none of their own.
func (c compiledSets) roleSet(role model.Role) actionSet {
	switch role {
	case model.RoleModerator:
		return c.moderator
	case model.RoleAdmin:
		return c.admin
	}
	return actionSet{}
}

// Resolver evaluates requests against a compiled matrix.  It is read-only
// after construction and safe for concurrent use.
type Resolver struct {
	sets map[string]compiledSets
}

// NewResolver compiles m.
func NewResolver(m Matrix) *Resolver {
	r := &Resolver{sets: make(map[string]compiledSets, len(m))}
	for resource, s := range m {
		r.sets[resource] = compiledSets{
			public:        newActionSet(s.Public),
			authenticated: newActionSet(s.Authenticated),
			moderator:     newActionSet(s.Moderator),
			admin:         newActionSet(s.Admin),
			owner:         newActionSet(s.Owner),
		}
	}
	return r
}

// IsPublic reports whether req is granted without an identity.
func (r *Resolver) IsPublic(req Request) bool {
	sets, ok := r.sets[req.Resource]
	return ok && sets.public.has(req.Key())
}

// Resolve decides req for identity (nil when anonymous).  Evaluation order:
// admins pass outright; then public, authenticated, moderator, admin and
// owner entries are consulted in that order; finally a request addressing an
// item passes when the role's own set or the owner set holds any
// id-parameterized entry.  Owner and id grants are provisional: the handler
// loads the item and makes the final decision.
func (r *Resolver) Resolve(identity *model.User, req Request) (Decision, error) {
	if identity != nil && identity.Role == model.RoleAdmin {
		return Decision{}, nil
	}
	if req.Resource == "" {
		return Decision{}, apperr.New(apperr.Forbidden, "invalid route")
	}
	sets, ok := r.sets[req.Resource]
	if !ok {
		return Decision{}, apperr.New(apperr.Forbidden, fmt.Sprintf("resource type %q is not supported", req.Resource))
	}
	key := req.Key()
	if sets.public.has(key) {
		return Decision{}, nil
	}
	if identity == nil {
		return Decision{}, apperr.Unauthorized(apperr.ReasonMissing, "authentication required")
	}
	if sets.authenticated.has(key) {
		return Decision{}, nil
	}
	if identity.Role == model.RoleModerator && sets.moderator.has(key) {
		return Decision{}, nil
	}
	if identity.Role == model.RoleAdmin && sets.admin.has(key) {
		return Decision{}, nil
	}
	if sets.owner.has(key) {
		return Decision{Provisional: true}, nil
	}
	if req.HasID && (sets.roleSet(identity.Role).withID || sets.owner.withID) {
		return Decision{Provisional: true}, nil
	}
	return Decision{}, apperr.New(apperr.Forbidden, "you do not have permission to access this resource")
}
