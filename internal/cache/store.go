// Package cache implements the local cache store: the users, the posts and
// the current session kept as JSON values in a key-value mapping.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gallery/internal/domain"

	"github.com/samber/lo"
)

// Keys of the values held in the underlying mapping.
const (
	UsersKey       = "gallery_users"
	PostsKey       = "gallery_posts"
	CurrentUserKey = "gallery_current_user"
)

// Store reads and writes the gallery values of a KeyValueStore.
//
// Read-modify-write cycles issued through one Store are serialized; writers
// in other processes sharing the mapping still overwrite each other.
type Store struct {
	kv domain.KeyValueStore
	mu sync.Mutex
}

// New wraps kv.
func New(kv domain.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Initialize writes users and posts under their keys if those keys are
// absent. Existing values are left alone.
func (s *Store) Initialize(ctx context.Context, users []domain.User, posts []domain.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putIfAbsent(ctx, UsersKey, users); err != nil {
		return err
	}
	return s.putIfAbsent(ctx, PostsKey, posts)
}

func (s *Store) putIfAbsent(ctx context.Context, key string, v any) error {
	_, err := s.kv.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrKeyNotFound) {
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	return s.put(ctx, key, v)
}

// Users returns all cached users, or an empty list if none were stored.
func (s *Store) Users(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	if err := s.get(ctx, UsersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SaveUsers replaces the cached user list.
func (s *Store) SaveUsers(ctx context.Context, users []domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, UsersKey, users)
}

// UserByID returns the cached user with the given id, or nil.
func (s *Store) UserByID(ctx context.Context, id string) (*domain.User, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := lo.Find(users, func(u domain.User) bool { return u.ID == id })
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// UpdateUsers applies fn to the cached user list and stores the result. If
// fn fails nothing is written.
func (s *Store) UpdateUsers(ctx context.Context, fn func([]domain.User) ([]domain.User, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []domain.User
	if err := s.get(ctx, UsersKey, &users); err != nil {
		return err
	}
	users, err := fn(users)
	if err != nil {
		return err
	}
	return s.put(ctx, UsersKey, users)
}

// MergeUsers inserts every user whose id is not cached yet. Cached entries
// are never overwritten. It returns the number of inserted users.
func (s *Store) MergeUsers(ctx context.Context, candidates ...domain.User) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	added := 0
	err := s.UpdateUsers(ctx, func(users []domain.User) ([]domain.User, error) {
		known := lo.Associate(users, func(u domain.User) (string, struct{}) { return u.ID, struct{}{} })
		for _, c := range candidates {
			if _, ok := known[c.ID]; ok {
				continue
			}
			known[c.ID] = struct{}{}
			users = append(users, c)
			added++
		}
		return users, nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Posts returns the cached post list, most recent first.
func (s *Store) Posts(ctx context.Context) ([]domain.Post, error) {
	posts := []domain.Post{}
	if err := s.get(ctx, PostsKey, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// UpdatePosts applies fn to the cached post list and stores the result. If
// fn fails nothing is written.
func (s *Store) UpdatePosts(ctx context.Context, fn func([]domain.Post) ([]domain.Post, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []domain.Post
	if err := s.get(ctx, PostsKey, &posts); err != nil {
		return err
	}
	posts, err := fn(posts)
	if err != nil {
		return err
	}
	return s.put(ctx, PostsKey, posts)
}

// SessionUserID returns the id of the signed-in user, or "" if there is no
// session.
func (s *Store) SessionUserID(ctx context.Context) (string, error) {
	b, err := s.kv.Get(ctx, CurrentUserKey)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: get %s: %w", CurrentUserKey, err)
	}
	return string(b), nil
}

// SetSession records userID as the signed-in user. The id is stored raw,
// not JSON encoded.
func (s *Store) SetSession(ctx context.Context, userID string) error {
	if err := s.kv.Put(ctx, CurrentUserKey, []byte(userID)); err != nil {
		return fmt.Errorf("cache: put %s: %w", CurrentUserKey, err)
	}
	return nil
}

// ClearSession removes the session key.
func (s *Store) ClearSession(ctx context.Context) error {
	err := s.kv.Delete(ctx, CurrentUserKey)
	if err != nil && !errors.Is(err, domain.ErrKeyNotFound) {
		return fmt.Errorf("cache: delete %s: %w", CurrentUserKey, err)
	}
	return nil
}

// CurrentUser resolves the session against the cached users. It returns nil
// when nobody is signed in or the session names an unknown user.
func (s *Store) CurrentUser(ctx context.Context) (*domain.User, error) {
	id, err := s.SessionUserID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) get(ctx context.Context, key string, dst any) error {
	b, err := s.kv.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("cache: put %s: %w", key, err)
	}
	return nil
}
