package app

import (
	"context"
	"strconv"
	"time"

	"gallery/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the bcrypt cost for locally stored passwords.
var passwordCost = bcrypt.DefaultCost

// SignUpResult describes a successful sign-up. User is nil when the account
// still has to be verified and no session was established.
type SignUpResult struct {
	User              *domain.User
	NeedsVerification bool
}

// Storage is the persistence capability behind AuthService and PostService.
// LocalStorage keeps everything in the cache; RemoteStorage delegates to a
// backend and mirrors profiles into the cache.
type Storage interface {
	// Initialize seeds the cache and syncs any existing remote session.
	Initialize(ctx context.Context) error

	SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error)
	// SignIn checks credentials and returns the cached user. It does not
	// establish the session.
	SignIn(ctx context.Context, identifier, password string) (*domain.User, error)
	// SignInWithIdentity resolves or provisions the account of a user
	// authenticated by an external identity provider. It does not establish
	// the session.
	SignInWithIdentity(ctx context.Context, email, subject string) (*domain.User, error)
	// SignOut ends the remote session, if any. It does not touch the cache.
	SignOut(ctx context.Context)
	// SetUserRole updates the role outside the cache, if anywhere.
	SetUserRole(ctx context.Context, userID string, role domain.Role)

	CreatePost(ctx context.Context, author *domain.User, draft domain.Post) (*domain.Post, error)
	// Posts returns posts newest first, restricted to userID unless it is
	// empty.
	Posts(ctx context.Context, userID string) ([]domain.Post, error)
	ToggleLike(ctx context.Context, user *domain.User, postID string) (*domain.Post, error)
	AddComment(ctx context.Context, user *domain.User, postID string, c domain.Comment) (*domain.Post, error)
}

const (
	demoUserID   = "demo"
	demoUsername = "demo_user"
	demoEmail    = "demo_user@example.com"
	demoPassword = "demo123"
)

// demoData returns the seed user and posts written to an empty cache.
func demoData(now time.Time) ([]domain.User, []domain.Post, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), passwordCost)
	if err != nil {
		return nil, nil, err
	}
	users := []domain.User{{
		ID:           demoUserID,
		Username:     demoUsername,
		Email:        demoEmail,
		PasswordHash: string(hash),
		AvatarURL:    "https://images.unsplash.com/photo-1535713875002-d1d0cf377fde?w=150",
		Bio:          "Welcome to the gallery! 📸",
		CreatedAt:    now,
		Role:         domain.RoleCreator,
	}}

	samples := []struct{ image, caption string }{
		{"https://images.unsplash.com/photo-1682687220742-aba13b6e50ba?w=600", "Beautiful sunset views 🌅"},
		{"https://images.unsplash.com/photo-1469474968028-56623f02e42e?w=600", "Nature at its finest 🌲"},
		{"https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=600", "City lights ✨"},
	}
	posts := make([]domain.Post, 0, len(samples))
	for i, s := range samples {
		posts = append(posts, domain.Post{
			ID:        strconv.Itoa(i + 1),
			UserID:    demoUserID,
			ImageURL:  s.image,
			Caption:   s.caption,
			Likes:     []string{},
			Comments:  []domain.Comment{},
			CreatedAt: now,
		})
	}
	return users, posts, nil
}
