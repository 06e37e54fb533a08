// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"net/url"
	"time"
)

// Role controls what a user may do beyond reading, liking and commenting.
type Role string

const (
	RoleViewer  Role = "viewer"
	RoleCreator Role = "creator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleCreator
}

// User is a registered account as held in the local cache.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// PasswordHash is a bcrypt hash for locally registered users and empty
	// when the remote backend owns authentication.
	PasswordHash string    `json:"password"`
	AvatarURL    string    `json:"avatar"`
	Bio          string    `json:"bio"`
	CreatedAt    time.Time `json:"createdAt"`
	Role         Role      `json:"role"`
}

// IsCreator reports whether the user may publish posts.
func (u *User) IsCreator() bool {
	return u != nil && u.Role == RoleCreator
}

// DefaultAvatarURL returns the generated initials avatar for a username.
func DefaultAvatarURL(username string) string {
	return "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(username)
}

// AuthUser is an identity as reported by the remote authentication service.
type AuthUser struct {
	ID       string
	Email    string
	Username string
}

// AuthEvent names a change of the remote authentication state.
type AuthEvent string

const (
	AuthSignedIn  AuthEvent = "SIGNED_IN"
	AuthSignedOut AuthEvent = "SIGNED_OUT"
)

// AuthListener is notified after the remote session changes. user is nil for
// AuthSignedOut.
type AuthListener func(ctx context.Context, event AuthEvent, user *AuthUser)

// AuthClient is the port for the remote authentication service.
type AuthClient interface {
	SignUp(ctx context.Context, email, password, username string) (*AuthUser, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthUser, error)
	SignOut(ctx context.Context) error
	// Session returns the currently authenticated identity, or nil if there
	// is none.
	Session(ctx context.Context) (*AuthUser, error)
	OnAuthStateChange(fn AuthListener)
}
