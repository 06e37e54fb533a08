// Package postgres implements the remote backend on a self-hosted PostgreSQL
// database: password accounts and the profiles, posts and comments tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gallery/internal/domain"

	_ "github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain.Backend. It holds the session of
// a single client.
type DB struct {
	sql *sql.DB

	mu        sync.Mutex
	session   *domain.AuthUser
	listeners []domain.AuthListener
}

var _ domain.Backend = (*DB)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(ctx context.Context, connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS auth_users (id TEXT PRIMARY KEY, email TEXT UNIQUE NOT NULL, username TEXT NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS profiles (id TEXT PRIMARY KEY, username TEXT NOT NULL, avatar_url TEXT, bio TEXT, created_at TIMESTAMPTZ NOT NULL, role TEXT NOT NULL DEFAULT 'viewer' CHECK(role IN ('viewer','creator')));",
		"CREATE TABLE IF NOT EXISTS posts (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, image_url TEXT NOT NULL, caption TEXT NOT NULL DEFAULT '', likes TEXT[] NOT NULL DEFAULT '{}', created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);",
		"CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);",
		"CREATE TABLE IF NOT EXISTS comments (id TEXT PRIMARY KEY, post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE, user_id TEXT NOT NULL, text TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);",
	}
	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// Optional post details were added after the first release.
	alterStmts := []string{
		"ALTER TABLE posts ADD COLUMN IF NOT EXISTS location TEXT;",
		"ALTER TABLE posts ADD COLUMN IF NOT EXISTS people_present TEXT;",
		"ALTER TABLE posts ADD COLUMN IF NOT EXISTS rating INT CHECK(rating BETWEEN 1 AND 5);",
	}
	for _, stmt := range alterStmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
