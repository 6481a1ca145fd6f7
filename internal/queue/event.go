// Package queue defines message payloads exchanged over the message broker.
package queue

// ModerationQueueName is the durable queue carrying ModerationEvent.
const ModerationQueueName = "tweet.moderation"

// Moderation actions carried by ModerationEvent.Action.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
	ActionDeleted       = "deleted"
)

// ModerationEvent is published whenever a tweet is created, edited, moved
// between statuses or deleted.  It carries enough for the audit consumer to
// write a log line without querying the primary database.
type ModerationEvent struct {
	TweetID     string `json:"tweet_id"`
	AuthorID    string `json:"author_id"`
	ActorID     string `json:"actor_id"`
	ActorRole   string `json:"actor_role"`
	Action      string `json:"action"`
	FromStatus  string `json:"from_status,omitempty"`
	ToStatus    string `json:"to_status"`
	IsSensitive bool   `json:"is_sensitive"`
	OccurredAt  string `json:"occurred_at"`
}
