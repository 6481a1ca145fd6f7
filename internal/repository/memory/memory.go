// Package memory provides map-backed implementations of the repository
// stores.  They follow the same contracts as the MySQL repositories
// (normalization, sentinel errors, compare-and-swap rotation) and are used
// by handler, router and service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/repository"
)

// Users is an in-memory repository.UserStore.
type Users struct {
	mu   sync.Mutex
	rows map[string]model.User
	// Clock stamps created/updated times; defaults to time.Now.
	Clock func() time.Time
}

func NewUsers() *Users { return &Users{rows: map[string]model.User{}, Clock: time.Now} }

var _ repository.UserStore = (*Users)(nil)

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Username = model.NormalizeHandle(u.Username)
	u.Email = model.NormalizeHandle(u.Email)
	for _, row := range s.rows {
		if row.Username == u.Username {
			return repository.ErrUsernameExists
		}
		if row.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	now := s.Clock().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.rows[u.ID] = *u
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByLogin(_ context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	login = model.NormalizeHandle(login)
	for _, u := range s.rows {
		if u.Username == login || u.Email == login {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) update(id string, fn func(*model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = s.Clock().UTC()
	s.rows[id] = u
	return nil
}

func (s *Users) SetRefreshToken(_ context.Context, id, hash string) error {
	return s.update(id, func(u *model.User) { u.RefreshTokenHash = hash })
}

func (s *Users) SwapRefreshToken(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.rows[id]
	if !ok || current == "" || u.RefreshTokenHash != current {
		return false, nil
	}
	u.RefreshTokenHash = next
	u.UpdatedAt = s.Clock().UTC()
	s.rows[id] = u
	return true, nil
}

func (s *Users) UpdateRole(_ context.Context, id string, role model.Role) error {
	return s.update(id, func(u *model.User) { u.Role = role })
}

func (s *Users) SetDisabled(_ context.Context, id string, disabled bool) error {
	return s.update(id, func(u *model.User) {
		u.IsDisabled = disabled
		if disabled {
			u.RefreshTokenHash = ""
		}
	})
}

func (s *Users) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *Users) ListAdminIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, u := range s.rows {
		if u.Role == model.RoleAdmin {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Users) List(_ context.Context, p repository.Page) ([]model.User, int64, error) {
	s.mu.Lock()
	all := make([]model.User, 0, len(s.rows))
	for _, u := range s.rows {
		all = append(all, u)
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return window(all, p), int64(len(all)), nil
}

// Tweets is an in-memory repository.TweetStore.  Reactions are kept as one
// value per (tweet, user) exactly like the tweet_reactions table.
type Tweets struct {
	mu        sync.Mutex
	rows      map[string]model.Tweet
	reactions map[string]map[string]model.Reaction
	reposts   map[string]map[string]bool
	order     []string
	Clock     func() time.Time
}

func NewTweets() *Tweets {
	return &Tweets{
		rows:      map[string]model.Tweet{},
		reactions: map[string]map[string]model.Reaction{},
		reposts:   map[string]map[string]bool{},
		Clock:     time.Now,
	}
}

var _ repository.TweetStore = (*Tweets)(nil)

func (s *Tweets) Create(_ context.Context, t *model.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	now := s.Clock().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.rows[t.ID] = cloneTweet(*t)
	s.order = append(s.order, t.ID)
	return nil
}

func (s *Tweets) GetByID(_ context.Context, id string) (*model.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.withEngagement(t, true)
	return &out, nil
}

func (s *Tweets) Update(_ context.Context, t *model.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Title, cur.Description, cur.Image = t.Title, t.Description, t.Image
	cur.Status, cur.IsSensitive, cur.Tags = t.Status, t.IsSensitive, append([]string{}, t.Tags...)
	cur.UpdatedAt = s.Clock().UTC()
	t.UpdatedAt = cur.UpdatedAt
	s.rows[t.ID] = cur
	return nil
}

func (s *Tweets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	delete(s.reactions, id)
	delete(s.reposts, id)
	return nil
}

func (s *Tweets) List(_ context.Context, f repository.TweetFilter, p repository.Page) ([]model.Tweet, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := map[string]bool{}
	for _, id := range f.ExcludeAuthors {
		excluded[id] = true
	}
	search := strings.ToLower(f.Search)
	var out []model.Tweet
	for i := len(s.order) - 1; i >= 0; i-- {
		t, ok := s.rows[s.order[i]]
		if !ok {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && t.AuthorID != f.AuthorID {
			continue
		}
		if excluded[t.AuthorID] {
			continue
		}
		if f.Sensitive != nil && t.IsSensitive != *f.Sensitive {
			continue
		}
		if search != "" && !matches(t, search) {
			continue
		}
		out = append(out, s.withEngagement(t, false))
	}
	if f.Ascending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return window(out, p), int64(len(out)), nil
}

func (s *Tweets) React(_ context.Context, tweetID, userID string, pressed model.Reaction) (model.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[tweetID]; !ok {
		return model.ReactionNone, repository.ErrNotFound
	}
	byUser := s.reactions[tweetID]
	if byUser == nil {
		byUser = map[string]model.Reaction{}
		s.reactions[tweetID] = byUser
	}
	next := model.NextReaction(byUser[userID], pressed)
	if next == model.ReactionNone {
		delete(byUser, userID)
	} else {
		byUser[userID] = next
	}
	return next, nil
}

func (s *Tweets) ToggleRepost(_ context.Context, tweetID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[tweetID]; !ok {
		return false, repository.ErrNotFound
	}
	set := s.reposts[tweetID]
	if set == nil {
		set = map[string]bool{}
		s.reposts[tweetID] = set
	}
	if set[userID] {
		delete(set, userID)
		return false, nil
	}
	set[userID] = true
	return true, nil
}

func (s *Tweets) withEngagement(t model.Tweet, sets bool) model.Tweet {
	t = cloneTweet(t)
	var likes, dislikes, reposts []string
	for uid, r := range s.reactions[t.ID] {
		if r == model.ReactionLike {
			likes = append(likes, uid)
		} else {
			dislikes = append(dislikes, uid)
		}
	}
	for uid := range s.reposts[t.ID] {
		reposts = append(reposts, uid)
	}
	sort.Strings(likes)
	sort.Strings(dislikes)
	sort.Strings(reposts)
	t.LikeCount, t.DislikeCount, t.RepostCount = len(likes), len(dislikes), len(reposts)
	if sets {
		t.Likes, t.Dislikes, t.Reposts = nonNil(likes), nonNil(dislikes), nonNil(reposts)
	}
	return t
}

func matches(t model.Tweet, search string) bool {
	if strings.Contains(strings.ToLower(t.Title), search) || strings.Contains(strings.ToLower(t.Description), search) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func cloneTweet(t model.Tweet) model.Tweet {
	t.Tags = append([]string{}, t.Tags...)
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func window[T any](all []T, p repository.Page) []T {
	start := p.Offset()
	if start >= len(all) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
