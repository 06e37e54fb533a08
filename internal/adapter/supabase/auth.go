package supabase

import (
	"context"
	"errors"

	"gallery/internal/domain"
)

type gotrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Username string `json:"username"`
	} `json:"user_metadata"`
}

func (u *gotrueUser) authUser() *domain.AuthUser {
	return &domain.AuthUser{ID: u.ID, Email: u.Email, Username: u.UserMetadata.Username}
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	User        gotrueUser `json:"user"`
}

// signUpResponse is either a bare user (email confirmation pending) or a
// session carrying the user.
type signUpResponse struct {
	gotrueUser
	User *gotrueUser `json:"user"`
}

// SignUp registers an account with the username stored as user metadata.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*domain.AuthUser, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"username": username},
	}
	var out signUpResponse
	res, err := c.r(ctx).SetBody(body).SetResult(&out).Post("/auth/v1/signup")
	if err := check(res, err); err != nil {
		return nil, err
	}
	u := &out.gotrueUser
	if out.User != nil {
		u = out.User
	}
	if u.ID == "" {
		return nil, errors.New("supabase: sign-up returned no user")
	}
	return u.authUser(), nil
}

// SignInWithPassword exchanges credentials for an access token and keeps it
// as the current session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthUser, error) {
	var out tokenResponse
	res, err := c.r(ctx).
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/auth/v1/token")
	if err := check(res, err); err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.User.ID == "" {
		return nil, errors.New("supabase: sign-in returned no session")
	}

	au := out.User.authUser()
	c.mu.Lock()
	c.session = &session{accessToken: out.AccessToken, user: *au}
	c.mu.Unlock()

	c.notify(ctx, domain.AuthSignedIn, au)
	return au, nil
}

// SignOut revokes the access token. The local session is dropped even when
// the request fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	hadSession := c.session != nil
	c.mu.Unlock()
	if !hadSession {
		return nil
	}

	res, err := c.r(ctx).Post("/auth/v1/logout")
	reqErr := check(res, err)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	c.notify(ctx, domain.AuthSignedOut, nil)
	return reqErr
}

// Session returns the identity of the current session, or nil.
func (c *Client) Session(context.Context) (*domain.AuthUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, nil
	}
	u := c.session.user
	return &u, nil
}

// OnAuthStateChange registers fn for sign-in and sign-out events.
func (c *Client) OnAuthStateChange(fn domain.AuthListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) notify(ctx context.Context, event domain.AuthEvent, au *domain.AuthUser) {
	c.mu.Lock()
	listeners := append([]domain.AuthListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, event, au)
	}
}
