package app

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"gallery/internal/adapter/memory"
	"gallery/internal/cache"
	"gallery/internal/domain"
)

var errBackendDown = errors.New("backend down")

type fakeAccount struct {
	user     domain.AuthUser
	password string
}

// fakeBackend is an in-memory domain.Backend. Setting fail[op] makes the
// named operation return that error.
type fakeBackend struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount
	session   *domain.AuthUser
	listeners []domain.AuthListener
	profiles  map[string]domain.Profile
	posts     map[string]domain.Post
	comments  []domain.PostComment
	fail      map[string]error

	signOutCalls   int
	profileLookups int
}

var _ domain.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: map[string]fakeAccount{},
		profiles: map[string]domain.Profile{},
		posts:    map[string]domain.Post{},
		fail:     map[string]error{},
	}
}

func (b *fakeBackend) addAccount(id, email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email] = fakeAccount{user: domain.AuthUser{ID: id, Email: email}, password: password}
}

func (b *fakeBackend) addPost(p domain.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts[p.ID] = p
}

func (b *fakeBackend) notify(ctx context.Context, event domain.AuthEvent, au *domain.AuthUser) {
	b.mu.Lock()
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx, event, au)
	}
}

func (b *fakeBackend) SignUp(_ context.Context, email, password, username string) (*domain.AuthUser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["sign_up"]; err != nil {
		return nil, err
	}
	au := domain.AuthUser{ID: "remote-" + username, Email: email, Username: username}
	b.accounts[email] = fakeAccount{user: au, password: password}
	return &au, nil
}

func (b *fakeBackend) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthUser, error) {
	b.mu.Lock()
	acc, ok := b.accounts[email]
	if !ok || acc.password != password {
		b.mu.Unlock()
		return nil, errors.New("invalid login credentials")
	}
	au := acc.user
	b.session = &au
	b.mu.Unlock()

	b.notify(ctx, domain.AuthSignedIn, &au)
	return &au, nil
}

func (b *fakeBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.signOutCalls++
	if err := b.fail["sign_out"]; err != nil {
		b.mu.Unlock()
		return err
	}
	b.session = nil
	b.mu.Unlock()

	b.notify(ctx, domain.AuthSignedOut, nil)
	return nil
}

func (b *fakeBackend) Session(context.Context) (*domain.AuthUser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil, nil
	}
	au := *b.session
	return &au, nil
}

func (b *fakeBackend) OnAuthStateChange(fn domain.AuthListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *fakeBackend) Profile(_ context.Context, id string) (*domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileLookups++
	if err := b.fail["profile"]; err != nil {
		return nil, err
	}
	p, ok := b.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (b *fakeBackend) Profiles(_ context.Context, ids []string) ([]domain.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileLookups++
	if err := b.fail["profiles"]; err != nil {
		return nil, err
	}
	var out []domain.Profile
	for _, id := range ids {
		if p, ok := b.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (b *fakeBackend) InsertProfile(_ context.Context, p domain.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["insert_profile"]; err != nil {
		return err
	}
	b.profiles[p.ID] = p
	return nil
}

func (b *fakeBackend) UpdateProfileRole(_ context.Context, id string, role domain.Role) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["update_role"]; err != nil {
		return err
	}
	p := b.profiles[id]
	p.Role = role
	b.profiles[id] = p
	return nil
}

func (b *fakeBackend) InsertPost(_ context.Context, p domain.Post) (*domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["insert_post"]; err != nil {
		return nil, err
	}
	b.posts[p.ID] = p
	return &p, nil
}

func (b *fakeBackend) Post(_ context.Context, id string) (*domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["post"]; err != nil {
		return nil, err
	}
	p, ok := b.posts[id]
	if !ok {
		return nil, nil
	}
	p.Likes = slices.Clone(p.Likes)
	return &p, nil
}

func (b *fakeBackend) ListPosts(_ context.Context, userID string) ([]domain.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["list_posts"]; err != nil {
		return nil, err
	}
	out := []domain.Post{}
	for _, p := range b.posts {
		if userID == "" || p.UserID == userID {
			p.Likes = slices.Clone(p.Likes)
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, c domain.Post) int { return c.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (b *fakeBackend) UpdatePostLikes(_ context.Context, id string, likes []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["update_likes"]; err != nil {
		return err
	}
	p := b.posts[id]
	p.Likes = slices.Clone(likes)
	b.posts[id] = p
	return nil
}

func (b *fakeBackend) InsertComment(_ context.Context, postID string, c domain.Comment) (*domain.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["insert_comment"]; err != nil {
		return nil, err
	}
	b.comments = append(b.comments, domain.PostComment{PostID: postID, Comment: c})
	return &c, nil
}

func (b *fakeBackend) ListComments(_ context.Context, postIDs []string) ([]domain.PostComment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail["list_comments"]; err != nil {
		return nil, err
	}
	var out []domain.PostComment
	for _, c := range b.comments {
		if slices.Contains(postIDs, c.PostID) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, c domain.PostComment) int { return a.CreatedAt.Compare(c.CreatedAt) })
	return out, nil
}

type remoteFixture struct {
	backend *fakeBackend
	kv      *memory.DB
	store   *cache.Store
	storage *RemoteStorage
	auth    *AuthService
	posts   *PostService
}

func newRemoteFixture(t *testing.T, backend *fakeBackend) *remoteFixture {
	t.Helper()
	kv := memory.New()
	store := cache.New(kv)
	st := NewRemoteStorage(backend, store, nil)
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return &remoteFixture{
		backend: backend,
		kv:      kv,
		store:   store,
		storage: st,
		auth:    NewAuthService(st, store),
		posts:   NewPostService(st, store),
	}
}

func TestRemoteStorage_SignUpNeedsVerification(t *testing.T) {
	ctx := context.Background()
	f := newRemoteFixture(t, newFakeBackend())

	res, err := f.auth.SignUp(ctx, "eve", "eve@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if !res.NeedsVerification || res.User != nil {
		t.Fatalf("expected pending verification without a user, got %+v", res)
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected no session, got %s", cur.ID)
	}
	p, ok := f.backend.profiles["remote-eve"]
	if !ok || p.Username != "eve" || p.Role != domain.RoleViewer {
		t.Errorf("expected viewer profile row, got %+v", p)
	}
}

func TestRemoteStorage_SignUpFailure(t *testing.T) {
	b := newFakeBackend()
	b.fail["sign_up"] = errBackendDown
	f := newRemoteFixture(t, b)

	if _, err := f.auth.SignUp(context.Background(), "eve", "eve@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRemoteStorage_SignInCachesProfile(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	f := newRemoteFixture(t, b)

	user, err := f.auth.SignIn(ctx, "frank@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	// No profile row: the username falls back to the email prefix.
	if user.ID != "u-1" || user.Username != "frank" || user.Role != domain.RoleViewer {
		t.Errorf("unexpected user: %+v", user)
	}
	if user.AvatarURL != domain.DefaultAvatarURL("frank") {
		t.Errorf("expected default avatar, got %s", user.AvatarURL)
	}
	cur, _ := f.auth.CurrentUser(ctx)
	if cur == nil || cur.ID != "u-1" {
		t.Fatalf("expected session for u-1, got %v", cur)
	}
}

func TestRemoteStorage_SignInFailureLeavesNoSession(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-9", "hal@example.com", "pw")
	f := newRemoteFixture(t, b)

	// An unreadable user list makes the profile cache step fail after the
	// backend has accepted the credentials.
	if err := f.kv.Put(ctx, cache.UsersKey, []byte("{")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := f.auth.SignIn(ctx, "hal@example.com", "pw"); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := f.kv.Get(ctx, cache.CurrentUserKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("expected no session key, got %v", err)
	}
	if s, _ := b.Session(ctx); s != nil {
		t.Errorf("expected the backend session to be ended, got %+v", s)
	}
}

func TestRemoteStorage_SignInWithIdentityUnsupported(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	f := newRemoteFixture(t, b)

	if _, err := f.auth.SignInWithIdentity(ctx, "bob@corp.example", "sub-1"); !errors.Is(err, ErrIdentityUnsupported) {
		t.Fatalf("expected ErrIdentityUnsupported, got %v", err)
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected no session, got %s", cur.ID)
	}
	if _, err := f.posts.CreatePost(ctx, NewPost{ImageURL: "https://img/1.jpg"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(b.posts) != 0 {
		t.Errorf("expected no remote posts, got %d", len(b.posts))
	}
}

func TestRemoteStorage_SignInUsesProfileRow(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-2", "gina@example.com", "pw")
	b.profiles["u-2"] = domain.Profile{ID: "u-2", Username: "gina_g", Bio: "hi", Role: domain.RoleCreator}
	f := newRemoteFixture(t, b)

	user, err := f.auth.SignIn(ctx, "gina@example.com", "pw")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if user.Username != "gina_g" || !user.IsCreator() || user.Bio != "hi" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestRemoteStorage_SignInInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	f := newRemoteFixture(t, b)
	before := f.raw(t, cache.UsersKey)

	if _, err := f.auth.SignIn(ctx, "frank@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !bytes.Equal(before, f.raw(t, cache.UsersKey)) {
		t.Error("users changed after failed sign-in")
	}
}

func TestRemoteStorage_SignInAdminRejectsViewer(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	f := newRemoteFixture(t, b)

	if _, err := f.auth.SignInAdmin(ctx, "frank@example.com", "pw"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if b.signOutCalls != 1 {
		t.Errorf("expected remote sign-out, got %d calls", b.signOutCalls)
	}
	if s, _ := b.Session(ctx); s != nil {
		t.Error("expected remote session to be gone")
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected no local session, got %s", cur.ID)
	}
}

func TestRemoteStorage_SignOutIgnoresBackendError(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	f := newRemoteFixture(t, b)
	if _, err := f.auth.SignIn(ctx, "frank@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	b.fail["sign_out"] = errBackendDown
	f.auth.SignOut(ctx)
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected local session cleared, got %s", cur.ID)
	}
}

func TestRemoteStorage_SetUserRole(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	b.profiles["u-1"] = domain.Profile{ID: "u-1", Username: "frank", Role: domain.RoleViewer}
	f := newRemoteFixture(t, b)
	if _, err := f.auth.SignIn(ctx, "frank@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := f.auth.SetUserRole(ctx, "u-1", domain.RoleCreator); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if b.profiles["u-1"].Role != domain.RoleCreator {
		t.Errorf("expected remote role updated")
	}

	// A remote failure still updates the cache.
	b.fail["update_role"] = errBackendDown
	if err := f.auth.SetUserRole(ctx, "u-1", domain.RoleViewer); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	cur, _ := f.auth.CurrentUser(ctx)
	if cur.Role != domain.RoleViewer {
		t.Errorf("expected cached role viewer, got %s", cur.Role)
	}
}

func TestRemoteStorage_CreatePost(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	f := newRemoteFixture(t, b)
	if _, err := f.auth.SignIn(ctx, "frank@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	before := f.raw(t, cache.PostsKey)

	p, err := f.posts.CreatePost(ctx, NewPost{ImageURL: "https://x/r.jpg", Caption: "remote", Rating: -2})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.UserID != "u-1" || p.Rating != 1 || len(p.Likes) != 0 || len(p.Comments) != 0 {
		t.Errorf("unexpected post: %+v", p)
	}
	if _, ok := b.posts[p.ID]; !ok {
		t.Error("expected post row inserted")
	}
	if !bytes.Equal(before, f.raw(t, cache.PostsKey)) {
		t.Error("cached post list must not change")
	}

	b.fail["insert_post"] = errBackendDown
	if _, err := f.posts.CreatePost(ctx, NewPost{ImageURL: "https://x/r.jpg"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRemoteStorage_PostsJoinsCommentsAndCachesProfiles(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	b := newFakeBackend()
	b.profiles["a"] = domain.Profile{ID: "a", Username: "author", Role: domain.RoleCreator}
	b.profiles["c"] = domain.Profile{ID: "c", Username: "commenter"}
	b.profiles["demo"] = domain.Profile{ID: "demo", Username: "imposter"}
	b.addPost(domain.Post{ID: "p-old", UserID: "a", ImageURL: "x", CreatedAt: now.Add(-time.Hour), Likes: []string{}})
	b.addPost(domain.Post{ID: "p-new", UserID: "demo", ImageURL: "y", CreatedAt: now, Likes: []string{"a"}})
	b.comments = []domain.PostComment{
		{PostID: "p-old", Comment: domain.Comment{ID: "c2", UserID: "c", Text: "second", CreatedAt: now.Add(-time.Minute)}},
		{PostID: "p-old", Comment: domain.Comment{ID: "c1", UserID: "c", Text: "first", CreatedAt: now.Add(-time.Hour)}},
	}
	f := newRemoteFixture(t, b)

	posts, err := f.posts.Posts(ctx)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "p-new" || posts[1].ID != "p-old" {
		t.Fatalf("expected newest first, got %+v", posts)
	}
	if len(posts[0].Comments) != 0 {
		t.Errorf("expected no comments on p-new, got %d", len(posts[0].Comments))
	}
	if got := posts[1].Comments; len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Errorf("expected comments oldest first, got %+v", got)
	}

	for id, want := range map[string]string{"a": "author", "c": "commenter", "demo": "demo_user"} {
		u, err := f.posts.UserByID(ctx, id)
		if err != nil {
			t.Fatalf("UserByID(%s): %v", id, err)
		}
		if u.Username != want {
			t.Errorf("user %s: expected %s, got %s", id, want, u.Username)
		}
	}

	// Everything is cached now; a second read asks for no profiles.
	lookups := b.profileLookups
	if _, err := f.posts.Posts(ctx); err != nil {
		t.Fatalf("Posts: %v", err)
	}
	if b.profileLookups != lookups {
		t.Errorf("expected no profile lookups, got %d", b.profileLookups-lookups)
	}
}

func TestRemoteStorage_PostsByUserID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	b := newFakeBackend()
	b.addPost(domain.Post{ID: "p1", UserID: "a", CreatedAt: now.Add(-time.Hour)})
	b.addPost(domain.Post{ID: "p2", UserID: "b", CreatedAt: now})
	b.addPost(domain.Post{ID: "p3", UserID: "a", CreatedAt: now.Add(time.Minute)})
	f := newRemoteFixture(t, b)

	posts, err := f.posts.PostsByUserID(ctx, "a")
	if err != nil {
		t.Fatalf("PostsByUserID: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "p3" || posts[1].ID != "p1" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestRemoteStorage_PostsBackendFailure(t *testing.T) {
	b := newFakeBackend()
	b.addPost(domain.Post{ID: "p1", UserID: "a"})
	b.fail["list_posts"] = errBackendDown
	f := newRemoteFixture(t, b)

	posts, err := f.posts.Posts(context.Background())
	if err != nil {
		t.Fatalf("expected failure to be swallowed, got %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Errorf("expected empty list, got %v", posts)
	}
}

func TestRemoteStorage_ToggleLikeAndComment(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.addAccount("u-1", "frank@example.com", "pw")
	b.addPost(domain.Post{ID: "p1", UserID: "a", CreatedAt: time.Now().UTC(), Likes: []string{}})
	f := newRemoteFixture(t, b)
	if _, err := f.auth.SignIn(ctx, "frank@example.com", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	p, err := f.posts.ToggleLike(ctx, "p1")
	if err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if !p.LikedBy("u-1") || !slices.Equal(b.posts["p1"].Likes, []string{"u-1"}) {
		t.Fatalf("expected like stored, got %v / %v", p.Likes, b.posts["p1"].Likes)
	}
	if p, err = f.posts.ToggleLike(ctx, "p1"); err != nil || len(p.Likes) != 0 {
		t.Fatalf("expected like removed, got %v, %v", p, err)
	}

	p, err = f.posts.AddComment(ctx, "p1", "nice")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if len(p.Comments) != 1 || p.Comments[0].Text != "nice" || p.Comments[0].UserID != "u-1" {
		t.Errorf("unexpected comments: %+v", p.Comments)
	}

	if _, err := f.posts.ToggleLike(ctx, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
	b.fail["insert_comment"] = errBackendDown
	if _, err := f.posts.AddComment(ctx, "p1", "again"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRemoteStorage_InitializeSyncsSession(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	b.session = &domain.AuthUser{ID: "u-9", Email: "hana@example.com"}
	f := newRemoteFixture(t, b)

	cur, err := f.auth.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if cur == nil || cur.ID != "u-9" || cur.Username != "hana" {
		t.Fatalf("expected restored session for hana, got %+v", cur)
	}

	// A sign-out reported by the backend clears the local session.
	b.notify(ctx, domain.AuthSignedOut, nil)
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected session cleared, got %s", cur.ID)
	}
}

func (f *remoteFixture) raw(t *testing.T, key string) []byte {
	t.Helper()
	b, err := f.kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("raw %s: %v", key, err)
	}
	return b
}
