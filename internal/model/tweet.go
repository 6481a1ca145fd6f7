package model

import (
	"strings"
	"time"
)

// TweetStatus is the moderation status of a tweet.  Statuses have no order;
// who may move a tweet between them is decided by the moderation package.
type TweetStatus string

const (
	StatusDraft            TweetStatus = "draft"
	StatusAwaitingApproval TweetStatus = "awaiting_approval"
	StatusApproved         TweetStatus = "approved"
	StatusPublished        TweetStatus = "published"
	StatusRejected         TweetStatus = "rejected"
	StatusArchived         TweetStatus = "archived"
)

var TweetStatuses = []TweetStatus{
	StatusDraft,
	StatusAwaitingApproval,
	StatusApproved,
	StatusPublished,
	StatusRejected,
	StatusArchived,
}

// ParseTweetStatus reports whether s is an exact status value.
func ParseTweetStatus(s string) (TweetStatus, bool) {
	st := TweetStatus(strings.TrimSpace(s))
	for _, v := range TweetStatuses {
		if v == st {
			return st, true
		}
	}
	return "", false
}

// Tweet is a user post.  Likes, Dislikes and Reposts hold identity ids; they
// are only populated when a single tweet is loaded, list queries fill the
// counters instead.
type Tweet struct {
	ID           string      `json:"id"`
	AuthorID     string      `json:"author"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Image        string      `json:"image,omitempty"`
	Status       TweetStatus `json:"status"`
	IsSensitive  bool        `json:"isSensitive"`
	Tags         []string    `json:"tags"`
	Likes        []string    `json:"likes,omitempty"`
	Dislikes     []string    `json:"dislikes,omitempty"`
	Reposts      []string    `json:"reposts,omitempty"`
	LikeCount    int         `json:"likesCount"`
	DislikeCount int         `json:"dislikesCount"`
	RepostCount  int         `json:"repostsCount"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// IsOwnedBy reports whether userID authored the tweet.
func (t *Tweet) IsOwnedBy(userID string) bool {
	return userID != "" && t.AuthorID == userID
}

// Reaction is the single opinion an identity holds on a tweet.  Storing one
// value per (tweet, identity) is what keeps likes and dislikes disjoint.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// NextReaction returns the reaction held after pressed is applied on top of
// current.  Pressing the held reaction withdraws it; pressing the other one
// replaces it.
func NextReaction(current, pressed Reaction) Reaction {
	if pressed == ReactionNone || current == pressed {
		return ReactionNone
	}
	return pressed
}

// CleanTags trims tags and drops empty ones.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
