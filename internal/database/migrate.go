package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		username           VARCHAR(64)  NOT NULL,
		email              VARCHAR(255) NOT NULL,
		full_name          VARCHAR(255) NOT NULL,
		avatar             VARCHAR(1024) NOT NULL DEFAULT '',
		cover_image        VARCHAR(1024) NOT NULL DEFAULT '',
		password_hash      VARCHAR(255) NOT NULL,
		role               ENUM('user','moderator','admin') NOT NULL DEFAULT 'user',
		is_disabled        BOOLEAN      NOT NULL DEFAULT FALSE,
		refresh_token_hash CHAR(64)     NULL,
		created_at         DATETIME     NOT NULL,
		updated_at         DATETIME     NOT NULL,
		UNIQUE KEY uq_users_username (username),
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_role (role)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tweets (
		id           CHAR(36)     NOT NULL PRIMARY KEY,
		author_id    CHAR(36)     NOT NULL,
		title        VARCHAR(280) NOT NULL,
		description  TEXT         NOT NULL,
		image        VARCHAR(1024) NULL,
		status       ENUM('draft','awaiting_approval','approved','published','rejected','archived') NOT NULL,
		is_sensitive BOOLEAN      NOT NULL DEFAULT FALSE,
		tags         TEXT         NOT NULL,
		created_at   DATETIME     NOT NULL,
		updated_at   DATETIME     NOT NULL,
		KEY idx_tweets_status_created (status, created_at),
		KEY idx_tweets_author (author_id),
		CONSTRAINT fk_tweets_author FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tweet_reactions (
		tweet_id   CHAR(36) NOT NULL,
		user_id    CHAR(36) NOT NULL,
		kind       ENUM('like','dislike') NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (tweet_id, user_id),
		CONSTRAINT fk_reactions_tweet FOREIGN KEY (tweet_id) REFERENCES tweets(id) ON DELETE CASCADE,
		CONSTRAINT fk_reactions_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tweet_reposts (
		tweet_id   CHAR(36) NOT NULL,
		user_id    CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (tweet_id, user_id),
		CONSTRAINT fk_reposts_tweet FOREIGN KEY (tweet_id) REFERENCES tweets(id) ON DELETE CASCADE,
		CONSTRAINT fk_reposts_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables the service needs if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
