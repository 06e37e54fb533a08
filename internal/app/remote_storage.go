package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gallery/internal/cache"
	"gallery/internal/domain"
	"gallery/internal/metrics"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// RemoteStorage delegates identity and persistence to a remote backend and
// uses the local cache as a read-through store for user profiles.
type RemoteStorage struct {
	backend domain.Backend
	store   *cache.Store
	log     *slog.Logger
}

var _ Storage = (*RemoteStorage)(nil)

// NewRemoteStorage creates a RemoteStorage. A nil logger means slog.Default.
func NewRemoteStorage(backend domain.Backend, store *cache.Store, log *slog.Logger) *RemoteStorage {
	if log == nil {
		log = slog.Default()
	}
	return &RemoteStorage{backend: backend, store: store, log: log}
}

// Initialize seeds the cache, subscribes to remote auth changes and mirrors
// the current remote session, if any, into the cache.
func (s *RemoteStorage) Initialize(ctx context.Context) error {
	if err := seed(ctx, s.store); err != nil {
		return err
	}

	s.backend.OnAuthStateChange(s.syncSession)

	au, err := s.backend.Session(ctx)
	if err != nil {
		s.failed(ctx, "get_session", err)
		return nil
	}
	if au != nil {
		s.syncSession(ctx, domain.AuthSignedIn, au)
	}
	return nil
}

func (s *RemoteStorage) syncSession(ctx context.Context, event domain.AuthEvent, au *domain.AuthUser) {
	switch event {
	case domain.AuthSignedIn:
		if au == nil {
			return
		}
		if err := s.store.SetSession(ctx, au.ID); err != nil {
			s.log.WarnContext(ctx, "session sync failed", "err", err)
			return
		}
		s.cacheIdentity(ctx, au)
	case domain.AuthSignedOut:
		if err := s.store.ClearSession(ctx); err != nil {
			s.log.WarnContext(ctx, "session sync failed", "err", err)
		}
	}
}

// SignUp creates the remote account and its profile row. The account must be
// verified before it can sign in, so no user is returned.
func (s *RemoteStorage) SignUp(ctx context.Context, username, email, password string) (*SignUpResult, error) {
	au, err := s.backend.SignUp(ctx, email, password, username)
	if err != nil {
		return nil, s.failed(ctx, "sign_up", err)
	}

	profile := domain.Profile{
		ID:        au.ID,
		Username:  username,
		AvatarURL: domain.DefaultAvatarURL(username),
		CreatedAt: time.Now().UTC(),
		Role:      domain.RoleViewer,
	}
	if err := s.backend.InsertProfile(ctx, profile); err != nil {
		s.failed(ctx, "insert_profile", err)
	}
	return &SignUpResult{NeedsVerification: true}, nil
}

// SignIn checks credentials with the backend and makes sure the profile is
// cached.
func (s *RemoteStorage) SignIn(ctx context.Context, identifier, password string) (*domain.User, error) {
	au, err := s.backend.SignInWithPassword(ctx, identifier, password)
	if err != nil {
		s.log.DebugContext(ctx, "remote sign-in rejected", "err", err)
		return nil, ErrInvalidCredentials
	}
	u, err := s.cachedIdentity(ctx, au)
	if err != nil {
		// The backend signed in and the listener already recorded the
		// session; undo both.
		s.SignOut(ctx)
		if cerr := s.store.ClearSession(ctx); cerr != nil {
			s.log.WarnContext(ctx, "clear session failed", "err", cerr)
		}
		return nil, err
	}
	return u, nil
}

// SignInWithIdentity is not available remotely: the backend owns account
// ids and would reject rows written for an identity it never issued.
func (s *RemoteStorage) SignInWithIdentity(context.Context, string, string) (*domain.User, error) {
	return nil, ErrIdentityUnsupported
}

func (s *RemoteStorage) cachedIdentity(ctx context.Context, au *domain.AuthUser) (*domain.User, error) {
	if err := s.cacheIdentity(ctx, au); err != nil {
		return nil, err
	}
	u, err := s.store.UserByID(ctx, au.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// cacheIdentity inserts the profile of au into the cache unless it is
// already there.
func (s *RemoteStorage) cacheIdentity(ctx context.Context, au *domain.AuthUser) error {
	cached, err := s.store.UserByID(ctx, au.ID)
	if err != nil || cached != nil {
		return err
	}
	profile, err := s.backend.Profile(ctx, au.ID)
	if err != nil {
		s.failed(ctx, "get_profile", err)
	}
	n, err := s.store.MergeUsers(ctx, userFromProfile(au, profile))
	metrics.CachedProfiles.Add(float64(n))
	return err
}

// userFromProfile builds the cache entry for a remote account. Missing
// profile fields fall back to values derived from the identity.
func userFromProfile(au *domain.AuthUser, p *domain.Profile) domain.User {
	u := domain.User{ID: au.ID, Email: au.Email, Role: domain.RoleViewer}
	if p != nil {
		u.Username = p.Username
		u.AvatarURL = p.AvatarURL
		u.Bio = p.Bio
		u.CreatedAt = p.CreatedAt
		if p.Role.Valid() {
			u.Role = p.Role
		}
	}
	if u.Username == "" {
		u.Username = au.Username
	}
	if u.Username == "" {
		u.Username, _, _ = strings.Cut(au.Email, "@")
	}
	if u.AvatarURL == "" {
		u.AvatarURL = domain.DefaultAvatarURL(u.Username)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return u
}

// SignOut ends the remote session. Errors are logged and ignored.
func (s *RemoteStorage) SignOut(ctx context.Context) {
	if err := s.backend.SignOut(ctx); err != nil {
		s.failed(ctx, "sign_out", err)
	}
}

// SetUserRole updates the profile row. Errors are logged and ignored.
func (s *RemoteStorage) SetUserRole(ctx context.Context, userID string, role domain.Role) {
	if err := s.backend.UpdateProfileRole(ctx, userID, role); err != nil {
		s.failed(ctx, "update_role", err)
	}
}

// CreatePost inserts a post row. The cached post list is not touched.
func (s *RemoteStorage) CreatePost(ctx context.Context, author *domain.User, draft domain.Post) (*domain.Post, error) {
	draft.ID = uuid.NewString()
	draft.UserID = author.ID
	draft.Likes = []string{}
	draft.CreatedAt = time.Now().UTC()

	p, err := s.backend.InsertPost(ctx, draft)
	if err != nil {
		return nil, s.failed(ctx, "insert_post", err)
	}
	p.Comments = []domain.Comment{}
	return p, nil
}

// Posts fetches posts and their comments and caches the profiles of every
// author and commenter not cached yet. Backend failures yield an empty list.
func (s *RemoteStorage) Posts(ctx context.Context, userID string) ([]domain.Post, error) {
	posts, err := s.backend.ListPosts(ctx, userID)
	if err != nil {
		s.failed(ctx, "list_posts", err)
		return []domain.Post{}, nil
	}
	if err := s.attachComments(ctx, posts); err != nil {
		s.failed(ctx, "list_comments", err)
	}
	s.cacheProfiles(ctx, posts)
	return posts, nil
}

// attachComments sets the comments of each post, oldest first.
func (s *RemoteStorage) attachComments(ctx context.Context, posts []domain.Post) error {
	for i := range posts {
		posts[i].Comments = []domain.Comment{}
	}
	if len(posts) == 0 {
		return nil
	}
	ids := lo.Map(posts, func(p domain.Post, _ int) string { return p.ID })
	rows, err := s.backend.ListComments(ctx, ids)
	if err != nil {
		return err
	}
	byPost := lo.GroupBy(rows, func(c domain.PostComment) string { return c.PostID })
	for i := range posts {
		for _, c := range byPost[posts[i].ID] {
			posts[i].Comments = append(posts[i].Comments, c.Comment)
		}
	}
	return nil
}

// cacheProfiles inserts the profiles of authors and commenters missing from
// the cache. Existing entries are never overwritten.
func (s *RemoteStorage) cacheProfiles(ctx context.Context, posts []domain.Post) {
	var ids []string
	for _, p := range posts {
		ids = append(ids, p.UserID)
		for _, c := range p.Comments {
			ids = append(ids, c.UserID)
		}
	}

	users, err := s.store.Users(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "profile cache read failed", "err", err)
		return
	}
	cached := lo.Associate(users, func(u domain.User) (string, bool) { return u.ID, true })
	missing := lo.Filter(lo.Uniq(ids), func(id string, _ int) bool { return id != "" && !cached[id] })
	if len(missing) == 0 {
		return
	}

	profiles, err := s.backend.Profiles(ctx, missing)
	if err != nil {
		s.failed(ctx, "list_profiles", err)
		return
	}
	fetched := lo.Map(profiles, func(p domain.Profile, _ int) domain.User {
		return userFromProfile(&domain.AuthUser{ID: p.ID}, &p)
	})
	n, err := s.store.MergeUsers(ctx, fetched...)
	if err != nil {
		s.log.WarnContext(ctx, "profile cache write failed", "err", err)
	}
	metrics.CachedProfiles.Add(float64(n))
}

// ToggleLike reads the current likes, writes the toggled array back and
// returns the post with its comments.
func (s *RemoteStorage) ToggleLike(ctx context.Context, user *domain.User, postID string) (*domain.Post, error) {
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	p.ToggleLike(user.ID)
	if err := s.backend.UpdatePostLikes(ctx, p.ID, p.Likes); err != nil {
		return nil, s.failed(ctx, "update_likes", err)
	}
	return s.hydrate(ctx, p)
}

// AddComment inserts the comment row and returns a fresh snapshot of the
// post and all of its comments.
func (s *RemoteStorage) AddComment(ctx context.Context, user *domain.User, postID string, c domain.Comment) (*domain.Post, error) {
	if _, err := s.loadPost(ctx, postID); err != nil {
		return nil, err
	}
	if _, err := s.backend.InsertComment(ctx, postID, c); err != nil {
		return nil, s.failed(ctx, "insert_comment", err)
	}
	p, err := s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, p)
}

func (s *RemoteStorage) loadPost(ctx context.Context, postID string) (*domain.Post, error) {
	p, err := s.backend.Post(ctx, postID)
	if err != nil {
		return nil, s.failed(ctx, "get_post", err)
	}
	if p == nil {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// hydrate attaches the comments of a single post.
func (s *RemoteStorage) hydrate(ctx context.Context, p *domain.Post) (*domain.Post, error) {
	posts := []domain.Post{*p}
	if err := s.attachComments(ctx, posts); err != nil {
		return nil, s.failed(ctx, "list_comments", err)
	}
	return &posts[0], nil
}

// failed logs and counts a swallowed backend error and returns the generic
// error handed to callers.
func (s *RemoteStorage) failed(ctx context.Context, op string, err error) error {
	s.log.WarnContext(ctx, "remote call failed", "op", op, "err", err)
	metrics.RemoteFailures.WithLabelValues(op).Inc()
	return ErrUnavailable
}
