package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"gallery/internal/adapter/memory"
	"gallery/internal/cache"
	"gallery/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	passwordCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type localFixture struct {
	kv    *memory.DB
	store *cache.Store
	auth  *AuthService
	posts *PostService
}

func newLocalFixture(t *testing.T) *localFixture {
	t.Helper()
	kv := memory.New()
	store := cache.New(kv)
	st := NewLocalStorage(store)
	if err := st.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return &localFixture{
		kv:    kv,
		store: store,
		auth:  NewAuthService(st, store),
		posts: NewPostService(st, store),
	}
}

func (f *localFixture) raw(t *testing.T, key string) []byte {
	t.Helper()
	b, err := f.kv.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("raw %s: %v", key, err)
	}
	return b
}

func TestAuthService_SignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	res, err := f.auth.SignUp(ctx, "alice", "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if res.User == nil || res.NeedsVerification {
		t.Fatalf("expected immediate local account, got %+v", res)
	}
	if res.User.Role != domain.RoleViewer {
		t.Errorf("expected viewer role, got %s", res.User.Role)
	}
	if res.User.PasswordHash == "s3cret" || res.User.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}

	cur, err := f.auth.CurrentUser(ctx)
	if err != nil || cur == nil || cur.ID != res.User.ID {
		t.Fatalf("expected session for new user, got %v, %v", cur, err)
	}

	f.auth.SignOut(ctx)
	for _, identifier := range []string{"alice", "alice@example.com"} {
		user, err := f.auth.SignIn(ctx, identifier, "s3cret")
		if err != nil {
			t.Fatalf("SignIn(%s): %v", identifier, err)
		}
		if user.Username != "alice" {
			t.Errorf("expected alice, got %s", user.Username)
		}
	}
}

func TestAuthService_SignUpDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)
	before := f.raw(t, cache.UsersKey)

	_, err := f.auth.SignUp(ctx, "demo_user", "other@example.com", "pw")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if !bytes.Equal(before, f.raw(t, cache.UsersKey)) {
		t.Error("stored users changed after rejected sign-up")
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected no session, got %s", cur.ID)
	}
}

func TestAuthService_SignUpValidation(t *testing.T) {
	f := newLocalFixture(t)
	tests := []struct {
		name                      string
		username, email, password string
	}{
		{"missing username", " ", "a@example.com", "pw"},
		{"missing email", "a", "", "pw"},
		{"missing password", "a", "a@example.com", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.auth.SignUp(context.Background(), tc.username, tc.email, tc.password)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthService_SignInDemoUser(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	for _, identifier := range []string{"demo_user", "demo_user@example.com"} {
		user, err := f.auth.SignIn(ctx, identifier, "demo123")
		if err != nil {
			t.Fatalf("SignIn(%s): %v", identifier, err)
		}
		if user.ID != "demo" || user.Role != domain.RoleCreator {
			t.Errorf("expected demo creator, got id=%s role=%s", user.ID, user.Role)
		}
	}
}

func TestAuthService_SignInInvalidPassword(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	_, err := f.auth.SignIn(ctx, "demo_user", "wrongpass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Error("failed sign-in must not establish a session")
	}
}

func TestAuthService_SignInAdmin(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	user, err := f.auth.SignInAdmin(ctx, "demo_user", "demo123")
	if err != nil {
		t.Fatalf("SignInAdmin(demo): %v", err)
	}
	if user.ID != "demo" {
		t.Errorf("expected demo, got %s", user.ID)
	}

	if _, err := f.auth.SignUp(ctx, "viewer", "viewer@example.com", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	_, err = f.auth.SignInAdmin(ctx, "viewer", "pw")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if cur, _ := f.auth.CurrentUser(ctx); cur != nil {
		t.Errorf("expected session to be torn down, got %s", cur.ID)
	}
}

func TestAuthService_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	if _, err := f.auth.SignIn(ctx, "demo_user", "demo123"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	f.auth.SignOut(ctx)
	if _, err := f.kv.Get(ctx, cache.CurrentUserKey); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected session key to be removed, got %v", err)
	}
	// Signing out twice is harmless.
	f.auth.SignOut(ctx)
}

func TestAuthService_SetUserRole(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	res, err := f.auth.SignUp(ctx, "bob", "bob@example.com", "pw")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if err := f.auth.SetUserRole(ctx, res.User.ID, domain.RoleCreator); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	cur, _ := f.auth.CurrentUser(ctx)
	if !cur.IsCreator() {
		t.Errorf("expected creator, got %s", cur.Role)
	}

	if err := f.auth.SetUserRole(ctx, res.User.ID, "admin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown role, got %v", err)
	}
	if err := f.auth.SetUserRole(ctx, "nobody", domain.RoleViewer); err != nil {
		t.Errorf("expected unknown user to be ignored, got %v", err)
	}
}

func TestAuthService_SignInWithIdentity(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	u1, err := f.auth.SignInWithIdentity(ctx, "sso@example.com", "sub-1")
	if err != nil {
		t.Fatalf("SignInWithIdentity: %v", err)
	}
	if u1.Username != "sso" || u1.PasswordHash != "" || u1.Role != domain.RoleViewer {
		t.Errorf("unexpected provisioned user: %+v", u1)
	}

	u2, err := f.auth.SignInWithIdentity(ctx, "sso@example.com", "sub-1")
	if err != nil {
		t.Fatalf("SignInWithIdentity again: %v", err)
	}
	if u2.ID != u1.ID {
		t.Errorf("expected the same user, got %s and %s", u1.ID, u2.ID)
	}

	// Provisioned users have no password and cannot sign in with one.
	f.auth.SignOut(ctx)
	if _, err := f.auth.SignIn(ctx, "sso", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := f.auth.SignInWithIdentity(ctx, "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_SignInWithIdentityKeepsUsernamesUnique(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	if _, err := f.auth.SignUp(ctx, "alice", "alice@home.example", "pw"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	sso, err := f.auth.SignInWithIdentity(ctx, "alice@corp.example", "sub-1")
	if err != nil {
		t.Fatalf("SignInWithIdentity: %v", err)
	}
	if sso.Username != "alice-2" {
		t.Errorf("expected alice-2, got %s", sso.Username)
	}
	again, err := f.auth.SignInWithIdentity(ctx, "alice@corp.example", "sub-1")
	if err != nil || again.ID != sso.ID {
		t.Fatalf("expected the same user again, got %v, %v", again, err)
	}

	users, err := f.store.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	seen := map[string]bool{}
	for _, u := range users {
		if seen[u.Username] {
			t.Errorf("username %s used twice", u.Username)
		}
		seen[u.Username] = true
	}

	// Password sign-in by username still finds the local account.
	f.auth.SignOut(ctx)
	u, err := f.auth.SignIn(ctx, "alice", "pw")
	if err != nil || u.Email != "alice@home.example" {
		t.Fatalf("expected local alice, got %v, %v", u, err)
	}
}

func TestAuthService_ExistingUserIDsAreNotReused(t *testing.T) {
	ctx := context.Background()
	f := newLocalFixture(t)

	seen := map[string]bool{}
	for _, name := range []string{"u1", "u2", "u3"} {
		res, err := f.auth.SignUp(ctx, name, name+"@example.com", "pw")
		if err != nil {
			t.Fatalf("SignUp(%s): %v", name, err)
		}
		if seen[res.User.ID] {
			t.Fatalf("duplicate user id %s", res.User.ID)
		}
		seen[res.User.ID] = true
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("state", "state") {
		t.Error("expected equal strings to match")
	}
	if ConstantTimeCompare("state", "other") {
		t.Error("expected different strings not to match")
	}
}
