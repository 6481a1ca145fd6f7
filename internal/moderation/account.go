package moderation

import (
	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
)

// RegistrationRole returns the role of a newly registered identity.
// registrar is nil for self-registration.  Only an admin may pick the role;
// anyone else always creates a plain user, whatever was requested.
func RegistrationRole(registrar *Actor, requested string) (model.Role, error) {
	if registrar == nil || registrar.Role != model.RoleAdmin || requested == "" {
		return model.RoleUser, nil
	}
	role, ok := model.ParseRole(requested)
	if !ok {
		return "", apperr.New(apperr.InvalidArgument, "invalid role")
	}
	return role, nil
}

// CanAssignRole reports whether actor may set target's role to role.
func CanAssignRole(actor Actor, target *model.User, role string) (model.Role, error) {
	if actor.Role != model.RoleAdmin {
		return "", apperr.New(apperr.Forbidden, "only admin can change roles")
	}
	r, ok := model.ParseRole(role)
	if !ok {
		return "", apperr.New(apperr.InvalidArgument, "invalid role")
	}
	if target.ID == actor.ID && r != model.RoleAdmin {
		return "", apperr.New(apperr.Forbidden, "admins cannot demote themselves")
	}
	return r, nil
}

var disableRules = map[model.Role]func(actor Actor, target *model.User) error{
	model.RoleUser: func(Actor, *model.User) error {
		return apperr.New(apperr.Forbidden, "only admin and moderator can disable accounts")
	},
	model.RoleModerator: func(_ Actor, target *model.User) error {
		if target.Role == model.RoleAdmin {
			return apperr.New(apperr.Forbidden, "moderators cannot disable admins")
		}
		return nil
	},
	model.RoleAdmin: func(Actor, *model.User) error { return nil },
}

// CanSetDisabled reports whether actor may toggle target's disabled flag.
// Nobody may disable themselves.
func CanSetDisabled(actor Actor, target *model.User) error {
	if target.ID == actor.ID {
		return apperr.New(apperr.Forbidden, "you cannot disable your own account")
	}
	rule, ok := disableRules[actor.Role]
	if !ok {
		return apperr.New(apperr.Forbidden, "unknown role")
	}
	return rule(actor, target)
}

// CanDeleteUser reports whether actor may delete target through the
// administrative endpoint.
func CanDeleteUser(actor Actor, target *model.User) error {
	if actor.Role != model.RoleAdmin {
		return apperr.New(apperr.Forbidden, "only admin can delete users")
	}
	if target.ID == actor.ID {
		return apperr.New(apperr.Forbidden, "use deleteAccount to delete your own account")
	}
	return nil
}
