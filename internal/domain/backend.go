package domain

import (
	"context"
	"time"
)

// Profile is the public row the remote backend keeps for every account.
type Profile struct {
	ID        string
	Username  string
	AvatarURL string
	Bio       string
	CreatedAt time.Time
	Role      Role
}

// RowStore is the port for the remote backend's tables. Lookups of a single
// row return nil without an error when the row does not exist.
type RowStore interface {
	Profile(ctx context.Context, id string) (*Profile, error)
	Profiles(ctx context.Context, ids []string) ([]Profile, error)
	InsertProfile(ctx context.Context, p Profile) error
	UpdateProfileRole(ctx context.Context, id string, role Role) error

	InsertPost(ctx context.Context, p Post) (*Post, error)
	Post(ctx context.Context, id string) (*Post, error)
	// ListPosts returns posts newest first, restricted to userID unless it
	// is empty. Comments are not populated.
	ListPosts(ctx context.Context, userID string) ([]Post, error)
	UpdatePostLikes(ctx context.Context, id string, likes []string) error

	InsertComment(ctx context.Context, postID string, c Comment) (*Comment, error)
	// ListComments returns the comments of the given posts oldest first.
	ListComments(ctx context.Context, postIDs []string) ([]PostComment, error)
}

// Backend is a hosted authentication and row storage service.
type Backend interface {
	AuthClient
	RowStore
}
