package app

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"gallery/internal/cache"
	"gallery/internal/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
)

// LocalStorage keeps users and posts in the local cache only.
type LocalStorage struct {
	store *cache.Store
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a LocalStorage on top of store.
func NewLocalStorage(store *cache.Store) *LocalStorage {
	return &LocalStorage{store: store}
}

// Initialize writes the demo user and posts if the cache is empty.
func (s *LocalStorage) Initialize(ctx context.Context) error {
	return seed(ctx, s.store)
}

func seed(ctx context.Context, store *cache.Store) error {
	users, posts, err := demoData(time.Now().UTC())
	if err != nil {
		return err
	}
	return store.Initialize(ctx, users, posts)
}

// SignUp registers a viewer unless the username is taken.
func (s *LocalStorage) SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, err
	}

	var created domain.User
	err = s.store.UpdateUsers(ctx, func(users []domain.User) ([]domain.User, error) {
		if lo.ContainsBy(users, func(u domain.User) bool { return u.Username == username }) {
			return nil, ErrUsernameTaken
		}
		now := time.Now().UTC()
		created = domain.User{
			ID:           newLocalUserID(now, users),
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
			AvatarURL:    domain.DefaultAvatarURL(username),
			CreatedAt:    now,
			Role:         domain.RoleViewer,
		}
		return append(users, created), nil
	})
	if err != nil {
		return nil, err
	}
	return &SignUpResult{User: &created}, nil
}

// newLocalUserID derives an id from the creation time in milliseconds,
// bumping it until it is unused.
func newLocalUserID(now time.Time, users []domain.User) string {
	taken := lo.Associate(users, func(u domain.User) (string, bool) { return u.ID, true })
	n := now.UnixMilli()
	for taken[strconv.FormatInt(n, 10)] {
		n++
	}
	return strconv.FormatInt(n, 10)
}

// SignIn matches identifier against usernames and emails and checks the
// password against the stored hash.
func (s *LocalStorage) SignIn(ctx context.Context, identifier, password string) (*domain.User, error) {
	users, err := s.store.Users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Username != identifier && u.Email != identifier {
			continue
		}
		if u.PasswordHash == "" {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil {
			return &u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// SignInWithIdentity returns the cached user with the given email.
// Unknown identities are provisioned as viewers without a password, named
// after the email prefix (or the subject when there is no email) and
// suffixed until the name is unused.
func (s *LocalStorage) SignInWithIdentity(ctx context.Context, email, subject string) (*domain.User, error) {
	name := subject
	if email != "" {
		name, _, _ = strings.Cut(email, "@")
	}

	var user domain.User
	err := s.store.UpdateUsers(ctx, func(users []domain.User) ([]domain.User, error) {
		if u, ok := lo.Find(users, func(u domain.User) bool {
			if email != "" {
				return u.Email == email
			}
			return u.Email == "" && u.PasswordHash == "" && u.Username == name
		}); ok {
			user = u
			return users, nil
		}
		now := time.Now().UTC()
		username := uniqueUsername(name, users)
		user = domain.User{
			ID:        newLocalUserID(now, users),
			Username:  username,
			Email:     email,
			AvatarURL: domain.DefaultAvatarURL(username),
			CreatedAt: now,
			Role:      domain.RoleViewer,
		}
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// uniqueUsername returns name, or name-2, name-3 and so on, whichever is
// the first not used by any of users.
func uniqueUsername(name string, users []domain.User) string {
	taken := lo.Associate(users, func(u domain.User) (string, bool) { return u.Username, true })
	candidate := name
	for n := 2; taken[candidate]; n++ {
		candidate = name + "-" + strconv.Itoa(n)
	}
	return candidate
}

// SignOut has nothing to end outside the cache.
func (s *LocalStorage) SignOut(context.Context) {}

// SetUserRole has nothing to update outside the cache.
func (s *LocalStorage) SetUserRole(context.Context, string, domain.Role) {}

// CreatePost prepends the post to the cached list.
func (s *LocalStorage) CreatePost(ctx context.Context, author *domain.User, draft domain.Post) (*domain.Post, error) {
	p := draft
	p.ID = uuid.NewString()
	p.UserID = author.ID
	p.Likes = []string{}
	p.Comments = []domain.Comment{}
	p.CreatedAt = time.Now().UTC()

	err := s.store.UpdatePosts(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		return append([]domain.Post{p}, posts...), nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Posts returns the cached list, which is newest first by construction.
func (s *LocalStorage) Posts(ctx context.Context, userID string) ([]domain.Post, error) {
	posts, err := s.store.Posts(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return posts, nil
	}
	return lo.Filter(posts, func(p domain.Post, _ int) bool { return p.UserID == userID }), nil
}

// ToggleLike flips the user's like on the cached post.
func (s *LocalStorage) ToggleLike(ctx context.Context, user *domain.User, postID string) (*domain.Post, error) {
	return s.updatePost(ctx, postID, func(p *domain.Post) {
		p.ToggleLike(user.ID)
	})
}

// AddComment appends c to the cached post.
func (s *LocalStorage) AddComment(ctx context.Context, user *domain.User, postID string, c domain.Comment) (*domain.Post, error) {
	return s.updatePost(ctx, postID, func(p *domain.Post) {
		p.Comments = append(p.Comments, c)
	})
}

func (s *LocalStorage) updatePost(ctx context.Context, postID string, fn func(*domain.Post)) (*domain.Post, error) {
	var updated domain.Post
	err := s.store.UpdatePosts(ctx, func(posts []domain.Post) ([]domain.Post, error) {
		i := slices.IndexFunc(posts, func(p domain.Post) bool { return p.ID == postID })
		if i < 0 {
			return nil, ErrPostNotFound
		}
		fn(&posts[i])
		updated = posts[i]
		return posts, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
