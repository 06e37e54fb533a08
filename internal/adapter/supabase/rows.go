package supabase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gallery/internal/domain"

	"github.com/samber/lo"
)

type profileRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Role      string    `json:"role,omitempty"`
}

func (r profileRow) profile() domain.Profile {
	return domain.Profile{
		ID:        r.ID,
		Username:  r.Username,
		AvatarURL: r.AvatarURL,
		Bio:       r.Bio,
		CreatedAt: r.CreatedAt,
		Role:      domain.Role(r.Role),
	}
}

type postRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ImageURL      string    `json:"image_url"`
	Caption       string    `json:"caption"`
	Likes         []string  `json:"likes"`
	CreatedAt     time.Time `json:"created_at"`
	Location      string    `json:"location,omitempty"`
	PeoplePresent string    `json:"people_present,omitempty"`
	Rating        int       `json:"rating,omitempty"`
}

func (r postRow) post() domain.Post {
	likes := r.Likes
	if likes == nil {
		likes = []string{}
	}
	return domain.Post{
		ID:            r.ID,
		UserID:        r.UserID,
		ImageURL:      r.ImageURL,
		Caption:       r.Caption,
		Likes:         likes,
		CreatedAt:     r.CreatedAt,
		Location:      r.Location,
		PeoplePresent: r.PeoplePresent,
		Rating:        r.Rating,
	}
}

type commentRow struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (r commentRow) comment() domain.PostComment {
	return domain.PostComment{
		PostID:  r.PostID,
		Comment: domain.Comment{ID: r.ID, UserID: r.UserID, Text: r.Text, CreatedAt: r.CreatedAt},
	}
}

const (
	profilesPath = "/rest/v1/profiles"
	postsPath    = "/rest/v1/posts"
	commentsPath = "/rest/v1/comments"
)

// eq and in build PostgREST filter values.
func eq(v string) string { return "eq." + v }

func in(vs []string) string {
	quoted := lo.Map(vs, func(v string, _ int) string {
		return strconv.Quote(v)
	})
	return "in.(" + strings.Join(quoted, ",") + ")"
}

// Profile fetches the profile row of a user, or nil if there is none.
func (c *Client) Profile(ctx context.Context, id string) (*domain.Profile, error) {
	var rows []profileRow
	res, err := c.r(ctx).
		SetQueryParam("id", eq(id)).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get(profilesPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].profile()
	return &p, nil
}

// Profiles fetches the existing profile rows among ids.
func (c *Client) Profiles(ctx context.Context, ids []string) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return []domain.Profile{}, nil
	}
	var rows []profileRow
	res, err := c.r(ctx).
		SetQueryParam("id", in(ids)).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get(profilesPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r profileRow, _ int) domain.Profile { return r.profile() }), nil
}

// InsertProfile creates a profile row.
func (c *Client) InsertProfile(ctx context.Context, p domain.Profile) error {
	row := profileRow{
		ID:        p.ID,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		Bio:       p.Bio,
		CreatedAt: p.CreatedAt,
		Role:      string(p.Role),
	}
	res, err := c.r(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(row).
		Post(profilesPath)
	return check(res, err)
}

// UpdateProfileRole patches the role of a profile.
func (c *Client) UpdateProfileRole(ctx context.Context, id string, role domain.Role) error {
	res, err := c.r(ctx).
		SetQueryParam("id", eq(id)).
		SetHeader("Prefer", "return=minimal").
		SetBody(map[string]string{"role": string(role)}).
		Patch(profilesPath)
	return check(res, err)
}

// InsertPost creates a post row and returns it as stored.
func (c *Client) InsertPost(ctx context.Context, p domain.Post) (*domain.Post, error) {
	row := postRow{
		ID:            p.ID,
		UserID:        p.UserID,
		ImageURL:      p.ImageURL,
		Caption:       p.Caption,
		Likes:         p.Likes,
		CreatedAt:     p.CreatedAt,
		Location:      p.Location,
		PeoplePresent: p.PeoplePresent,
		Rating:        p.Rating,
	}
	if row.Likes == nil {
		row.Likes = []string{}
	}
	var rows []postRow
	res, err := c.r(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&rows).
		Post(postsPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		out := row.post()
		return &out, nil
	}
	out := rows[0].post()
	return &out, nil
}

// Post fetches a post row without its comments, or nil if there is none.
func (c *Client) Post(ctx context.Context, id string) (*domain.Post, error) {
	var rows []postRow
	res, err := c.r(ctx).
		SetQueryParam("id", eq(id)).
		SetQueryParam("select", "*").
		SetResult(&rows).
		Get(postsPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].post()
	return &p, nil
}

// ListPosts returns post rows newest first, restricted to userID unless empty.
func (c *Client) ListPosts(ctx context.Context, userID string) ([]domain.Post, error) {
	req := c.r(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "created_at.desc")
	if userID != "" {
		req.SetQueryParam("user_id", eq(userID))
	}
	var rows []postRow
	res, err := req.SetResult(&rows).Get(postsPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r postRow, _ int) domain.Post { return r.post() }), nil
}

// UpdatePostLikes replaces the likes array of a post.
func (c *Client) UpdatePostLikes(ctx context.Context, id string, likes []string) error {
	if likes == nil {
		likes = []string{}
	}
	res, err := c.r(ctx).
		SetQueryParam("id", eq(id)).
		SetHeader("Prefer", "return=minimal").
		SetBody(map[string][]string{"likes": likes}).
		Patch(postsPath)
	return check(res, err)
}

// InsertComment creates a comment row on a post.
func (c *Client) InsertComment(ctx context.Context, postID string, cm domain.Comment) (*domain.Comment, error) {
	row := commentRow{
		ID:        cm.ID,
		PostID:    postID,
		UserID:    cm.UserID,
		Text:      cm.Text,
		CreatedAt: cm.CreatedAt,
	}
	var rows []commentRow
	res, err := c.r(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(row).
		SetResult(&rows).
		Post(commentsPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &cm, nil
	}
	out := rows[0].comment().Comment
	return &out, nil
}

// ListComments returns the comment rows of the given posts oldest first.
func (c *Client) ListComments(ctx context.Context, postIDs []string) ([]domain.PostComment, error) {
	if len(postIDs) == 0 {
		return []domain.PostComment{}, nil
	}
	var rows []commentRow
	res, err := c.r(ctx).
		SetQueryParam("post_id", in(postIDs)).
		SetQueryParam("select", "*").
		SetQueryParam("order", "created_at.asc").
		SetResult(&rows).
		Get(commentsPath)
	if err := check(res, err); err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r commentRow, _ int) domain.PostComment { return r.comment() }), nil
}
