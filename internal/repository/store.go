package repository

import (
	"context"

	"github.com/iliyamo/content-platform/internal/model"
)

// UserStore is the credential store used by the token service, the session
// guard and the user handlers.  UserRepo implements it on MySQL; the memory
// package implements it for tests.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	SetRefreshToken(ctx context.Context, id, hash string) error
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
	Delete(ctx context.Context, id string) error
	ListAdminIDs(ctx context.Context) ([]string, error)
	List(ctx context.Context, p Page) ([]model.User, int64, error)
}

// TweetFilter narrows List.  Empty fields do not filter.
type TweetFilter struct {
	Status         model.TweetStatus
	AuthorID       string
	ExcludeAuthors []string
	Sensitive      *bool
	Search         string
	// Ascending sorts oldest first; the default is newest first.
	Ascending bool
}

// TweetStore persists tweets and their engagement sets.
type TweetStore interface {
	Create(ctx context.Context, t *model.Tweet) error
	GetByID(ctx context.Context, id string) (*model.Tweet, error)
	Update(ctx context.Context, t *model.Tweet) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f TweetFilter, p Page) ([]model.Tweet, int64, error)
	React(ctx context.Context, tweetID, userID string, pressed model.Reaction) (model.Reaction, error)
	ToggleRepost(ctx context.Context, tweetID, userID string) (bool, error)
}
