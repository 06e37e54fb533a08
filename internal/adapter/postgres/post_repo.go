package postgres

import (
	"context"
	"database/sql"

	"gallery/internal/domain"

	"github.com/lib/pq"
)

const profileColumns = "id, username, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at, role"

const postColumns = "id, user_id, image_url, caption, likes, created_at, COALESCE(location, ''), COALESCE(people_present, ''), COALESCE(rating, 0)"

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (domain.Profile, error) {
	var p domain.Profile
	var role string
	err := s.Scan(&p.ID, &p.Username, &p.AvatarURL, &p.Bio, &p.CreatedAt, &role)
	p.Role = domain.Role(role)
	return p, err
}

func scanPost(s scanner) (domain.Post, error) {
	var p domain.Post
	var likes pq.StringArray
	err := s.Scan(&p.ID, &p.UserID, &p.ImageURL, &p.Caption, &likes, &p.CreatedAt, &p.Location, &p.PeoplePresent, &p.Rating)
	p.Likes = []string(likes)
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return p, err
}

// Profile retrieves a profile by user ID.
func (d *DB) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := scanProfile(d.sql.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Profiles retrieves the profiles of the given user IDs that exist.
func (d *DB) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.Profile, 0, len(ids))
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertProfile creates a profile row.
func (d *DB) InsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO profiles (id, username, avatar_url, bio, created_at, role) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)",
		p.ID, p.Username, p.AvatarURL, p.Bio, p.CreatedAt.UTC(), string(p.Role),
	)
	return err
}

// UpdateProfileRole changes the role of a profile.
func (d *DB) UpdateProfileRole(ctx context.Context, id string, role domain.Role) error {
	_, err := d.sql.ExecContext(ctx, "UPDATE profiles SET role = $2 WHERE id = $1", id, string(role))
	return err
}

// InsertPost creates a post row and returns it as stored.
func (d *DB) InsertPost(ctx context.Context, p domain.Post) (*domain.Post, error) {
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	out, err := scanPost(d.sql.QueryRowContext(ctx,
		"INSERT INTO posts (id, user_id, image_url, caption, likes, created_at, location, people_present, rating) "+
			"VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, 0)) RETURNING "+postColumns,
		p.ID, p.UserID, p.ImageURL, p.Caption, pq.Array(likes), p.CreatedAt.UTC(), p.Location, p.PeoplePresent, p.Rating,
	))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Post retrieves a post by ID without its comments.
func (d *DB) Post(ctx context.Context, id string) (*domain.Post, error) {
	p, err := scanPost(d.sql.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = $1", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns posts newest first, restricted to userID unless empty.
func (d *DB) ListPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE $1 = '' OR user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePostLikes replaces the likes array of a post.
func (d *DB) UpdatePostLikes(ctx context.Context, id string, likes []string) error {
	if likes == nil {
		likes = []string{}
	}
	_, err := d.sql.ExecContext(ctx, "UPDATE posts SET likes = $2 WHERE id = $1", id, pq.Array(likes))
	return err
}

// InsertComment creates a comment row on a post.
func (d *DB) InsertComment(ctx context.Context, postID string, c domain.Comment) (*domain.Comment, error) {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO comments (id, post_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, postID, c.UserID, c.Text, c.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments returns the comments of the given posts oldest first.
func (d *DB) ListComments(ctx context.Context, postIDs []string) ([]domain.PostComment, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT post_id, id, user_id, text, created_at FROM comments WHERE post_id = ANY($1) ORDER BY created_at ASC, id ASC",
		pq.Array(postIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.PostComment{}
	for rows.Next() {
		var c domain.PostComment
		if err := rows.Scan(&c.PostID, &c.ID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
