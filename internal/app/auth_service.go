// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"gallery/internal/cache"
	"gallery/internal/domain"
)

// AuthService handles sign-up, sign-in and the session of this client
// instance.
type AuthService struct {
	storage Storage
	store   *cache.Store
	log     *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(storage Storage, store *cache.Store) *AuthService {
	return &AuthService{
		storage: storage,
		store:   store,
		log:     slog.Default(),
	}
}

// SignUp registers an account. A local account is signed in immediately; a
// remote one is returned with NeedsVerification set and no session.
func (s *AuthService) SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error) {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}

	res, err := s.storage.SignUp(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	if res.User != nil && !res.NeedsVerification {
		if err := s.store.SetSession(ctx, res.User.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SignIn authenticates by username or email and establishes the session.
func (s *AuthService) SignIn(ctx context.Context, identifier, password string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.storage.SignIn(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSession(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// SignInAdmin is SignIn restricted to creators. Any other user is signed out
// again and ErrForbidden is returned.
func (s *AuthService) SignInAdmin(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := s.SignIn(ctx, identifier, password)
	if err != nil {
		return nil, err
	}
	if !user.IsCreator() {
		s.SignOut(ctx)
		return nil, ErrForbidden
	}
	return user, nil
}

// SignInWithIdentity establishes a session for a user already authenticated
// by an external identity provider.
func (s *AuthService) SignInWithIdentity(ctx context.Context, email, subject string) (*domain.User, error) {
	email, subject = strings.TrimSpace(email), strings.TrimSpace(subject)
	if email == "" && subject == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.storage.SignInWithIdentity(ctx, email, subject)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSession(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// SignOut ends the remote session, if any, and always clears the local one.
func (s *AuthService) SignOut(ctx context.Context) {
	s.storage.SignOut(ctx)
	if err := s.store.ClearSession(ctx); err != nil {
		s.log.WarnContext(ctx, "clear session failed", "err", err)
	}
}

// CurrentUser returns the signed-in user, or nil if there is none.
func (s *AuthService) CurrentUser(ctx context.Context) (*domain.User, error) {
	return s.store.CurrentUser(ctx)
}

// SetUserRole changes a user's role remotely (best effort) and in the cache.
func (s *AuthService) SetUserRole(ctx context.Context, userID string, role domain.Role) error {
	if userID == "" || !role.Valid() {
		return ErrInvalidInput
	}
	s.storage.SetUserRole(ctx, userID, role)

	err := s.store.UpdateUsers(ctx, func(users []domain.User) ([]domain.User, error) {
		for i := range users {
			if users[i].ID == userID {
				users[i].Role = role
				return users, nil
			}
		}
		return nil, ErrUserNotFound
	})
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	return err
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
