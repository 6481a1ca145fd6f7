package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/content-platform/internal/model"
)

// TweetRepo provides CRUD operations for tweets and their engagement rows.
// Likes and dislikes live in tweet_reactions with one row per (tweet, user),
// so an identity can never hold both.  Reposts live in tweet_reposts.
type TweetRepo struct {
	db *sql.DB
}

// NewTweetRepo returns a new TweetRepo bound to the given database.
func NewTweetRepo(db *sql.DB) *TweetRepo { return &TweetRepo{db: db} }

const tweetColumns = `t.id, t.author_id, t.title, t.description, COALESCE(t.image,''), t.status, t.is_sensitive, t.tags, t.created_at, t.updated_at,
	(SELECT COUNT(*) FROM tweet_reactions r WHERE r.tweet_id = t.id AND r.kind = 'like'),
	(SELECT COUNT(*) FROM tweet_reactions r WHERE r.tweet_id = t.id AND r.kind = 'dislike'),
	(SELECT COUNT(*) FROM tweet_reposts p WHERE p.tweet_id = t.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTweet(s rowScanner) (*model.Tweet, error) {
	var (
		t      model.Tweet
		status string
		tags   string
	)
	if err := s.Scan(&t.ID, &t.AuthorID, &t.Title, &t.Description, &t.Image, &status, &t.IsSensitive, &tags,
		&t.CreatedAt, &t.UpdatedAt, &t.LikeCount, &t.DislikeCount, &t.RepostCount); err != nil {
		return nil, err
	}
	t.Status = model.TweetStatus(status)
	t.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

// Create inserts t, assigning an id and timestamps.
func (r *TweetRepo) Create(ctx context.Context, t *model.Tweet) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Second)
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tweets (id, author_id, title, description, image, status, is_sensitive, tags, created_at, updated_at)
		 VALUES (?,?,?,?,NULLIF(?,''),?,?,?,?,?)`,
		t.ID, t.AuthorID, t.Title, t.Description, t.Image, string(t.Status), t.IsSensitive, tags, now, now)
	return err
}

// GetByID loads a tweet together with its engagement sets.
func (r *TweetRepo) GetByID(ctx context.Context, id string) (*model.Tweet, error) {
	t, err := scanTweet(r.db.QueryRowContext(ctx, "SELECT "+tweetColumns+" FROM tweets t WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Likes, t.Dislikes, t.Reposts = []string{}, []string{}, []string{}

	rows, err := r.db.QueryContext(ctx, "SELECT user_id, kind FROM tweet_reactions WHERE tweet_id = ? ORDER BY created_at", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid, kind string
		if err := rows.Scan(&uid, &kind); err != nil {
			return nil, err
		}
		if model.Reaction(kind) == model.ReactionLike {
			t.Likes = append(t.Likes, uid)
		} else {
			t.Dislikes = append(t.Dislikes, uid)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reposts, err := r.db.QueryContext(ctx, "SELECT user_id FROM tweet_reposts WHERE tweet_id = ? ORDER BY created_at", id)
	if err != nil {
		return nil, err
	}
	defer reposts.Close()
	for reposts.Next() {
		var uid string
		if err := reposts.Scan(&uid); err != nil {
			return nil, err
		}
		t.Reposts = append(t.Reposts, uid)
	}
	return t, reposts.Err()
}

// Update writes the editable fields and status of t.
func (r *TweetRepo) Update(ctx context.Context, t *model.Tweet) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`UPDATE tweets SET title=?, description=?, image=NULLIF(?,''), status=?, is_sensitive=?, tags=?, updated_at=?
		 WHERE id=?`,
		t.Title, t.Description, t.Image, string(t.Status), t.IsSensitive, tags, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the tweet; engagement rows cascade.
func (r *TweetRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tweets WHERE id=?", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// List returns one page of tweets matching f and the total number of
// matches.
func (r *TweetRepo) List(ctx context.Context, f TweetFilter, p Page) ([]model.Tweet, int64, error) {
	where := []string{}
	args := []any{}

	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.AuthorID != "" {
		where = append(where, "t.author_id = ?")
		args = append(args, f.AuthorID)
	}
	if len(f.ExcludeAuthors) > 0 {
		where = append(where, "t.author_id NOT IN (?"+strings.Repeat(",?", len(f.ExcludeAuthors)-1)+")")
		for _, id := range f.ExcludeAuthors {
			args = append(args, id)
		}
	}
	if f.Sensitive != nil {
		where = append(where, "t.is_sensitive = ?")
		args = append(args, *f.Sensitive)
	}
	if f.Search != "" {
		where = append(where, "(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ? OR LOWER(t.tags) LIKE ?)")
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like, like)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tweets t WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}
	dataSQL := "SELECT " + tweetColumns + " FROM tweets t WHERE " + cond +
		" ORDER BY t.created_at " + order + ", t.id LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), p.Limit, p.Offset())

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Tweet, 0, p.Limit)
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// React applies pressed on top of the reaction userID currently holds on
// tweetID and returns the resulting reaction.  The read and the write run in
// one transaction with the row locked, so concurrent presses by the same
// identity serialize.
func (r *TweetRepo) React(ctx context.Context, tweetID, userID string, pressed model.Reaction) (result model.Reaction, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ReactionNone, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM tweets WHERE id = ? FOR UPDATE", tweetID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return model.ReactionNone, err
	}

	var kind string
	err = tx.QueryRowContext(ctx,
		"SELECT kind FROM tweet_reactions WHERE tweet_id = ? AND user_id = ? FOR UPDATE", tweetID, userID).Scan(&kind)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.ReactionNone, err
	}
	err = nil

	next := model.NextReaction(model.Reaction(kind), pressed)
	if next == model.ReactionNone {
		_, err = tx.ExecContext(ctx, "DELETE FROM tweet_reactions WHERE tweet_id = ? AND user_id = ?", tweetID, userID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tweet_reactions (tweet_id, user_id, kind, created_at) VALUES (?,?,?,UTC_TIMESTAMP())
			 ON DUPLICATE KEY UPDATE kind = VALUES(kind), created_at = VALUES(created_at)`,
			tweetID, userID, string(next))
	}
	if err != nil {
		return model.ReactionNone, err
	}
	return next, nil
}

// ToggleRepost adds or removes userID's repost of tweetID and reports
// whether the repost is now present.
func (r *TweetRepo) ToggleRepost(ctx context.Context, tweetID, userID string) (reposted bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM tweets WHERE id = ? FOR UPDATE", tweetID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return false, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tweet_reposts WHERE tweet_id = ? AND user_id = ?", tweetID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO tweet_reposts (tweet_id, user_id, created_at) VALUES (?,?,UTC_TIMESTAMP())", tweetID, userID)
	return err == nil, err
}
