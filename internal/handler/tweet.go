package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/metrics"
	"github.com/iliyamo/content-platform/internal/middleware"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/moderation"
	"github.com/iliyamo/content-platform/internal/queue"
	"github.com/iliyamo/content-platform/internal/repository"
	"github.com/iliyamo/content-platform/internal/storage"
)

// EventPublisher delivers moderation events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ModerationEvent) error
}

// AdminSource returns the current admin ids.
type AdminSource interface {
	IDs(ctx context.Context) ([]string, error)
}

// TweetHandler bundles dependencies for the tweet endpoints.
type TweetHandler struct {
	Tweets  repository.TweetStore
	Users   repository.UserStore
	Admins  AdminSource
	Events  EventPublisher
	Uploads storage.Uploader
}

// flag is a boolean that remembers whether the client sent it.
type flag struct {
	set   bool
	value bool
}

func (f *flag) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &f.value); err != nil {
		return err
	}
	f.set = true
	return nil
}

// UnmarshalParam lets echo bind the flag from form values.
func (f *flag) UnmarshalParam(s string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	f.set, f.value = true, v
	return nil
}

func (f flag) ptr() *bool {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

type createTweetReq struct {
	Title       string   `json:"title" form:"title"`
	Description string   `json:"description" form:"description"`
	Tags        []string `json:"tags" form:"tags"`
	Status      string   `json:"status" form:"status"`
	IsSensitive flag     `json:"isSensitive" form:"isSensitive"`
	Author      string   `json:"author" form:"author"`
}

func (r createTweetReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Required, validation.Length(1, 5000)),
	)
}

type updateTweetReq struct {
	Title       string   `json:"title" form:"title"`
	Description string   `json:"description" form:"description"`
	Tags        []string `json:"tags" form:"tags"`
	Status      string   `json:"status" form:"status"`
	IsSensitive flag     `json:"isSensitive" form:"isSensitive"`
}

func (r updateTweetReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(1, 5000)),
	)
}

// edit turns the request into field changes; empty strings and absent tags
// leave the stored values alone.
func (r updateTweetReq) edit() moderation.Edit {
	e := moderation.Edit{IsSensitive: r.IsSensitive.ptr(), Tags: r.Tags, SetTags: r.Tags != nil}
	if t := strings.TrimSpace(r.Title); t != "" {
		e.Title = &t
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		e.Description = &d
	}
	return e
}

type statusReq struct {
	Status string `json:"status"`
}

// CreateTweet stores a new tweet.  Its initial status comes from the
// creation rules: users always wait for approval, moderators may choose
// unless the tweet is sensitive, admins may choose and default to
// published.
func (h *TweetHandler) CreateTweet(c echo.Context) error {
	var req createTweetReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	req.Title, req.Description = strings.TrimSpace(req.Title), strings.TrimSpace(req.Description)
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	actor := moderation.ActorOf(middleware.CurrentIdentity(c))
	authorID, err := moderation.ResolveAuthor(actor, strings.TrimSpace(req.Author))
	if err != nil {
		return err
	}
	if authorID != actor.ID {
		if _, err := h.Users.GetByID(ctx, authorID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.Wrap(apperr.NotFound, "author not found", err)
			}
			return err
		}
	}
	sensitive := req.IsSensitive.value
	status, err := moderation.InitialStatus(actor.Role, req.Status, sensitive)
	if err != nil {
		return err
	}

	image, err := uploadImage(c, h.Uploads, "image", "tweets")
	if err != nil {
		return err
	}
	t := &model.Tweet{
		ID:          uuid.NewString(),
		AuthorID:    authorID,
		Title:       req.Title,
		Description: req.Description,
		Image:       image,
		Status:      status,
		IsSensitive: sensitive,
		Tags:        model.CleanTags(req.Tags),
	}
	if err := h.Tweets.Create(ctx, t); err != nil {
		removeImage(ctx, c, h.Uploads, image)
		return err
	}
	metrics.Transition("new", string(status), string(actor.Role))
	h.emit(c, actor, t, queue.ActionCreated, "")
	return respond(c, http.StatusCreated, echo.Map{"tweet": t}, "tweet created successfully")
}

// GetAllTweets is the public feed.  It lists published tweets unless a
// status filter is given; other statuses are only listed for moderators and
// admins.
func (h *TweetHandler) GetAllTweets(c echo.Context) error {
	f := repository.TweetFilter{
		Status:    model.StatusPublished,
		Search:    strings.TrimSpace(c.QueryParam("search")),
		Ascending: sortAscending(c.QueryParam("sortBy")),
	}
	if s := c.QueryParam("status"); s != "" {
		st, ok := model.ParseTweetStatus(s)
		if !ok {
			return apperr.New(apperr.InvalidArgument, "invalid status filter")
		}
		viewer := middleware.CurrentIdentity(c)
		if st != model.StatusPublished && (viewer == nil || !viewer.Role.IsPrivileged()) {
			return apperr.New(apperr.Forbidden, "only admin and moderator can list unpublished tweets")
		}
		f.Status = st
	}
	if a := c.QueryParam("author"); a != "" {
		if _, err := uuid.Parse(a); err != nil {
			return apperr.New(apperr.InvalidArgument, "invalid author id")
		}
		f.AuthorID = a
	}
	return h.list(c, f, "tweets fetched successfully")
}

// GetTweetByID returns one tweet if the viewer may see it.
func (h *TweetHandler) GetTweetByID(c echo.Context) error {
	t, err := h.load(c)
	if err != nil {
		return err
	}
	var viewer *moderation.Actor
	if u := middleware.CurrentIdentity(c); u != nil {
		a := moderation.ActorOf(u)
		viewer = &a
	}
	if err := moderation.CanView(viewer, t); err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"tweet": t}, "tweet fetched successfully")
}

// GetMyTweets lists the caller's tweets in any status.
func (h *TweetHandler) GetMyTweets(c echo.Context) error {
	f := repository.TweetFilter{
		AuthorID:  middleware.CurrentIdentity(c).ID,
		Ascending: sortAscending(c.QueryParam("sortBy")),
	}
	if s := c.QueryParam("status"); s != "" {
		st, ok := model.ParseTweetStatus(s)
		if !ok {
			return apperr.New(apperr.InvalidArgument, "invalid status filter")
		}
		f.Status = st
	}
	return h.list(c, f, "your tweets fetched successfully")
}

// UpdateTweet applies an edit under the update rules.
func (h *TweetHandler) UpdateTweet(c echo.Context) error {
	t, err := h.load(c)
	if err != nil {
		return err
	}
	var req updateTweetReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	actor := moderation.ActorOf(middleware.CurrentIdentity(c))
	plan, err := moderation.PlanUpdate(actor, t, strings.TrimSpace(req.Status))
	if err != nil {
		return err
	}
	edit := req.edit()

	ctx := c.Request().Context()
	oldImage := t.Image
	if plan.ApplyFields {
		image, err := uploadImage(c, h.Uploads, "image", "tweets")
		if err != nil {
			return err
		}
		if image != "" {
			edit.Image = &image
		}
	}
	from := plan.Apply(t, edit)
	if err := h.Tweets.Update(ctx, t); err != nil {
		if edit.Image != nil {
			removeImage(ctx, c, h.Uploads, *edit.Image)
		}
		return err
	}
	if edit.Image != nil {
		removeImage(ctx, c, h.Uploads, oldImage)
	}
	metrics.Transition(string(from), string(t.Status), string(actor.Role))
	h.emit(c, actor, t, queue.ActionUpdated, from)
	return respond(c, http.StatusOK, echo.Map{"tweet": t}, "tweet updated successfully")
}

// UpdateTweetStatus moves a tweet to another status.  Moderators and admins
// only; only admins publish sensitive tweets.
func (h *TweetHandler) UpdateTweetStatus(c echo.Context) error {
	t, err := h.load(c)
	if err != nil {
		return err
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	actor := moderation.ActorOf(middleware.CurrentIdentity(c))
	st, err := moderation.PlanStatusChange(actor, t, strings.TrimSpace(req.Status))
	if err != nil {
		return err
	}
	from := t.Status
	t.Status = st
	if err := h.Tweets.Update(c.Request().Context(), t); err != nil {
		return err
	}
	metrics.Transition(string(from), string(st), string(actor.Role))
	h.emit(c, actor, t, queue.ActionStatusChanged, from)
	return respond(c, http.StatusOK, echo.Map{"tweet": t}, "tweet status updated successfully")
}

// DeleteTweet deletes a tweet and its stored image.
func (h *TweetHandler) DeleteTweet(c echo.Context) error {
	t, err := h.load(c)
	if err != nil {
		return err
	}
	actor := moderation.ActorOf(middleware.CurrentIdentity(c))
	if err := moderation.CanDelete(actor, t); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.Tweets.Delete(ctx, t.ID); err != nil {
		return err
	}
	removeImage(ctx, c, h.Uploads, t.Image)
	h.emit(c, actor, t, queue.ActionDeleted, t.Status)
	return respond(c, http.StatusOK, struct{}{}, "tweet deleted successfully")
}

func (h *TweetHandler) LikeTweet(c echo.Context) error {
	return h.react(c, model.ReactionLike)
}

func (h *TweetHandler) DislikeTweet(c echo.Context) error {
	return h.react(c, model.ReactionDislike)
}

// react toggles the caller's like or dislike.  Pressing one removes the
// other.
func (h *TweetHandler) react(c echo.Context, pressed model.Reaction) error {
	t, err := h.loadVisible(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	now, err := h.Tweets.React(ctx, t.ID, middleware.CurrentIdentity(c).ID, pressed)
	if err != nil {
		return err
	}
	if t, err = h.Tweets.GetByID(ctx, t.ID); err != nil {
		return err
	}
	data := echo.Map{"likesCount": t.LikeCount, "dislikesCount": t.DislikeCount}
	var msg string
	switch pressed {
	case model.ReactionLike:
		data["isLiked"] = now == model.ReactionLike
		msg = "tweet unliked"
		if now == model.ReactionLike {
			msg = "tweet liked"
		}
	default:
		data["isDisliked"] = now == model.ReactionDislike
		msg = "tweet undisliked"
		if now == model.ReactionDislike {
			msg = "tweet disliked"
		}
	}
	return respond(c, http.StatusOK, data, msg)
}

// RepostTweet toggles the caller's repost.
func (h *TweetHandler) RepostTweet(c echo.Context) error {
	t, err := h.loadVisible(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	reposted, err := h.Tweets.ToggleRepost(ctx, t.ID, middleware.CurrentIdentity(c).ID)
	if err != nil {
		return err
	}
	if t, err = h.Tweets.GetByID(ctx, t.ID); err != nil {
		return err
	}
	msg := "repost removed"
	if reposted {
		msg = "tweet reposted"
	}
	return respond(c, http.StatusOK, echo.Map{"isReposted": reposted, "repostsCount": t.RepostCount}, msg)
}

// Moderate is the moderation queue.  Admins never see their own tweets;
// moderators see neither their own nor any admin's.  Unparsable filters
// are ignored.
func (h *TweetHandler) Moderate(c echo.Context) error {
	actor := moderation.ActorOf(middleware.CurrentIdentity(c))
	excluded, err := moderation.QueueExclusions(c.Request().Context(), actor, h.Admins.IDs)
	if err != nil {
		return err
	}
	f := repository.TweetFilter{
		ExcludeAuthors: excluded,
		Search:         strings.TrimSpace(c.QueryParam("search")),
	}
	if a := c.QueryParam("author"); a != "" {
		if _, err := uuid.Parse(a); err == nil {
			f.AuthorID = a
		}
	}
	if st, ok := model.ParseTweetStatus(c.QueryParam("status")); ok {
		f.Status = st
	}
	if b, err := strconv.ParseBool(c.QueryParam("isSensitive")); err == nil {
		f.Sensitive = &b
	}
	return h.list(c, f, "tweets fetched for moderation successfully")
}

func (h *TweetHandler) list(c echo.Context, f repository.TweetFilter, msg string) error {
	p := repository.ParsePage(c.QueryParam("page"), c.QueryParam("limit"))
	tweets, total, err := h.Tweets.List(c.Request().Context(), f, p)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"tweets": tweets, "pagination": p.Describe(total)}, msg)
}

// load fetches the tweet addressed by :id.
func (h *TweetHandler) load(c echo.Context) (*model.Tweet, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "invalid tweet id")
	}
	t, err := h.Tweets.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "tweet not found", err)
	}
	return t, err
}

// loadVisible is load plus the visibility rule of the caller.
func (h *TweetHandler) loadVisible(c echo.Context) (*model.Tweet, error) {
	t, err := h.load(c)
	if err != nil {
		return nil, err
	}
	a := moderation.ActorOf(middleware.CurrentIdentity(c))
	if err := moderation.CanView(&a, t); err != nil {
		return nil, err
	}
	return t, nil
}

// emit publishes a moderation event without holding up the response.
func (h *TweetHandler) emit(c echo.Context, actor moderation.Actor, t *model.Tweet, action string, from model.TweetStatus) {
	if h.Events == nil {
		return
	}
	ev := queue.ModerationEvent{
		TweetID:     t.ID,
		AuthorID:    t.AuthorID,
		ActorID:     actor.ID,
		ActorRole:   string(actor.Role),
		Action:      action,
		FromStatus:  string(from),
		ToStatus:    string(t.Status),
		IsSensitive: t.IsSensitive,
		OccurredAt:  time.Now().UTC().Format(time.RFC3339),
	}
	logger := c.Logger()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Events.Publish(ctx, ev); err != nil {
			logger.Warnf("publish %s event for tweet %s: %v", action, ev.TweetID, err)
		}
	}()
}

// sortAscending reads sortBy: "createdAt" sorts oldest first, anything else
// ("-createdAt" by default) newest first.
func sortAscending(sortBy string) bool {
	return strings.TrimSpace(sortBy) == "createdAt"
}
