package storage

import (
	"context"
	"fmt"
)

// schemaStatements bootstraps the relational schema. Statements are idempotent
// so startup can run them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		cover_image_url TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		refresh_token TEXT,
		refresh_token_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		video_url TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		views BIGINT NOT NULL DEFAULT 0,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS videos_owner_idx ON videos (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS comments_video_idx ON comments (video_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS tweets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tweets_owner_idx ON tweets (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS likes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		target_kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, target_kind, target_id)
	)`,
	`CREATE INDEX IF NOT EXISTS likes_target_idx ON likes (target_kind, target_id)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_videos (
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		position BIGINT NOT NULL,
		added_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (playlist_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		subscriber_id TEXT NOT NULL REFERENCES users(id),
		channel_id TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (subscriber_id, channel_id)
	)`,
	`CREATE INDEX IF NOT EXISTS subscriptions_channel_idx ON subscriptions (channel_id, created_at DESC)`,
}

func (r *postgresRepository) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
