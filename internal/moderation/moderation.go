// Package moderation holds the rules governing tweet status and account
// administration.  Every decision keyed by role is a single table with one
// entry per model.Role, so adding a role fails the completeness tests until
// each table handles it.
package moderation

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/model"
)

// Actor is the identity performing a moderation decision.
type Actor struct {
	ID   string
	Role model.Role
}

// ActorOf returns the actor for u.
func ActorOf(u *model.User) Actor { return Actor{ID: u.ID, Role: u.Role} }

// creationRule decides the initial status from the requested status (ok is
// false when none or an unknown one was requested) and the sensitive flag.
type creationRule func(requested model.TweetStatus, ok, sensitive bool) model.TweetStatus

var creationRules = map[model.Role]creationRule{
	model.RoleUser: func(model.TweetStatus, bool, bool) model.TweetStatus {
		return model.StatusAwaitingApproval
	},
	model.RoleModerator: func(requested model.TweetStatus, ok, sensitive bool) model.TweetStatus {
		if ok && !sensitive {
			return requested
		}
		return model.StatusAwaitingApproval
	},
	model.RoleAdmin: func(requested model.TweetStatus, ok, _ bool) model.TweetStatus {
		if ok {
			return requested
		}
		return model.StatusPublished
	},
}

// InitialStatus returns the status a new tweet gets.  requested is the raw
// value from the client and may be empty or invalid; invalid values are
// treated as absent.
func InitialStatus(role model.Role, requested string, sensitive bool) (model.TweetStatus, error) {
	rule, ok := creationRules[role]
	if !ok {
		return "", apperr.New(apperr.Forbidden, "unknown role")
	}
	st, valid := model.ParseTweetStatus(requested)
	return rule(st, valid, sensitive), nil
}

// ResolveAuthor returns the author id of a new tweet.  Only admins may
// create on behalf of someone else; the caller still has to check that the
// returned author exists.
func ResolveAuthor(actor Actor, requested string) (string, error) {
	if requested == "" || requested == actor.ID {
		return actor.ID, nil
	}
	if actor.Role != model.RoleAdmin {
		return "", apperr.New(apperr.Forbidden, "only admin can create tweets for other users")
	}
	if _, err := uuid.Parse(requested); err != nil {
		return "", apperr.New(apperr.InvalidArgument, "invalid author id")
	}
	return requested, nil
}

// Edit carries optional field changes of an update.  Nil fields are left
// untouched.
type Edit struct {
	Title       *string
	Description *string
	Tags        []string
	SetTags     bool
	IsSensitive *bool
	Image       *string
}

// UpdatePlan is the outcome of an update decision.
type UpdatePlan struct {
	// ApplyFields is false when the actor may only change the status.
	ApplyFields bool
	// SetStatus reports whether Status replaces the current status.
	SetStatus bool
	Status    model.TweetStatus
}

type updateKey struct {
	role  model.Role
	owner bool
}

type updateRule func(t *model.Tweet, requested string) (UpdatePlan, error)

var awaitApproval = func(*model.Tweet, string) (UpdatePlan, error) {
	return UpdatePlan{ApplyFields: true, SetStatus: true, Status: model.StatusAwaitingApproval}, nil
}

var updateRules = map[updateKey]updateRule{
	{model.RoleUser, true}: awaitApproval,
	{model.RoleUser, false}: func(*model.Tweet, string) (UpdatePlan, error) {
		return UpdatePlan{}, apperr.New(apperr.Forbidden, "you can only update your own tweets")
	},
	{model.RoleModerator, true}: awaitApproval,
	{model.RoleModerator, false}: func(t *model.Tweet, requested string) (UpdatePlan, error) {
		st, ok := model.ParseTweetStatus(requested)
		if !ok {
			return UpdatePlan{}, apperr.New(apperr.InvalidArgument, "valid status is required")
		}
		if t.IsSensitive && st == model.StatusPublished {
			return UpdatePlan{}, apperr.New(apperr.Forbidden, "sensitive content must be approved by admin before publishing")
		}
		return UpdatePlan{SetStatus: true, Status: st}, nil
	},
	{model.RoleAdmin, true}:  adminUpdate,
	{model.RoleAdmin, false}: adminUpdate,
}

func adminUpdate(_ *model.Tweet, requested string) (UpdatePlan, error) {
	if requested == "" {
		return UpdatePlan{ApplyFields: true}, nil
	}
	st, ok := model.ParseTweetStatus(requested)
	if !ok {
		return UpdatePlan{}, apperr.New(apperr.InvalidArgument, "invalid status")
	}
	return UpdatePlan{ApplyFields: true, SetStatus: true, Status: st}, nil
}

// PlanUpdate decides what an update by actor may change on t.
//
//   - users and moderators editing their own tweet change fields only, and
//     the tweet goes back to awaiting_approval;
//   - users cannot touch other tweets;
//   - moderators editing someone else's tweet change the status only, and
//     cannot publish a sensitive tweet;
//   - admins change anything; a status, when given, must be valid.
func PlanUpdate(actor Actor, t *model.Tweet, requestedStatus string) (UpdatePlan, error) {
	rule, ok := updateRules[updateKey{actor.Role, t.IsOwnedBy(actor.ID)}]
	if !ok {
		return UpdatePlan{}, apperr.New(apperr.Forbidden, "you do not have permission to update this tweet")
	}
	return rule(t, requestedStatus)
}

// Apply writes the plan and e onto t.  It returns the status t had before.
func (p UpdatePlan) Apply(t *model.Tweet, e Edit) model.TweetStatus {
	from := t.Status
	if p.ApplyFields {
		if e.Title != nil {
			t.Title = *e.Title
		}
		if e.Description != nil {
			t.Description = *e.Description
		}
		if e.SetTags {
			t.Tags = model.CleanTags(e.Tags)
		}
		if e.IsSensitive != nil {
			t.IsSensitive = *e.IsSensitive
		}
		if e.Image != nil {
			t.Image = *e.Image
		}
	}
	if p.SetStatus {
		t.Status = p.Status
	}
	return from
}

// PlanStatusChange decides the status-only endpoint.  Only moderators and
// admins may use it, and only admins may publish a sensitive tweet.
func PlanStatusChange(actor Actor, t *model.Tweet, requested string) (model.TweetStatus, error) {
	if !actor.Role.IsPrivileged() {
		return "", apperr.New(apperr.Forbidden, "only admin and moderator can update tweet status")
	}
	st, ok := model.ParseTweetStatus(requested)
	if !ok {
		return "", apperr.New(apperr.InvalidArgument, "valid status is required")
	}
	if t.IsSensitive && st == model.StatusPublished && actor.Role != model.RoleAdmin {
		return "", apperr.New(apperr.Forbidden, "sensitive content must be approved by admin before publishing")
	}
	return st, nil
}

// CanDelete reports whether actor may delete t.
func CanDelete(actor Actor, t *model.Tweet) error {
	if t.IsOwnedBy(actor.ID) || actor.Role == model.RoleAdmin {
		return nil
	}
	return apperr.New(apperr.Forbidden, "you can only delete your own tweets")
}

// CanView reports whether viewer (nil when anonymous) may read t.
// Published tweets are visible to everyone; others only to their author,
// moderators and admins.
func CanView(viewer *Actor, t *model.Tweet) error {
	if t.Status == model.StatusPublished {
		return nil
	}
	if viewer != nil && (t.IsOwnedBy(viewer.ID) || viewer.Role.IsPrivileged()) {
		return nil
	}
	return apperr.New(apperr.Forbidden, "you do not have permission to view this tweet")
}

// queueRule returns the authors whose tweets are hidden from an actor's
// moderation queue.
type queueRule func(ctx context.Context, actor Actor, admins func(context.Context) ([]string, error)) ([]string, error)

var queueRules = map[model.Role]queueRule{
	model.RoleUser: func(context.Context, Actor, func(context.Context) ([]string, error)) ([]string, error) {
		return nil, apperr.New(apperr.Forbidden, "only admin and moderator can access tweet moderation")
	},
	model.RoleModerator: func(ctx context.Context, actor Actor, admins func(context.Context) ([]string, error)) ([]string, error) {
		ids, err := admins(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "could not load admin ids", err)
		}
		return append([]string{actor.ID}, ids...), nil
	},
	model.RoleAdmin: func(_ context.Context, actor Actor, _ func(context.Context) ([]string, error)) ([]string, error) {
		return []string{actor.ID}, nil
	},
}

// QueueExclusions returns the author ids excluded from actor's moderation
// queue: admins never see their own tweets, moderators see neither their
// own nor any admin's.  admins is only called for moderators.
func QueueExclusions(ctx context.Context, actor Actor, admins func(context.Context) ([]string, error)) ([]string, error) {
	rule, ok := queueRules[actor.Role]
	if !ok {
		return nil, apperr.New(apperr.Forbidden, "unknown role")
	}
	return rule(ctx, actor, admins)
}
