package postgres

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"gallery/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken is returned by SignUp for an email that already has an
	// account.
	ErrEmailTaken = errors.New("postgres: email already registered")
	// ErrInvalidLogin is returned by SignInWithPassword for unknown accounts
	// and wrong passwords alike.
	ErrInvalidLogin = errors.New("postgres: invalid login credentials")
)

var passwordCost = bcrypt.DefaultCost

// SignUp creates an account. Accounts are usable immediately; there is no
// email verification step.
func (d *DB) SignUp(ctx context.Context, email, password, username string) (*domain.AuthUser, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, err
	}
	au := domain.AuthUser{ID: uuid.NewString(), Email: email, Username: username}
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO auth_users (id, email, username, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)",
		au.ID, au.Email, au.Username, string(hash), time.Now().UTC(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return &au, nil
}

// SignInWithPassword checks the credentials of the account with the given
// email or username and makes it the current session.
func (d *DB) SignInWithPassword(ctx context.Context, login, password string) (*domain.AuthUser, error) {
	var au domain.AuthUser
	var hash string
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, email, username, password_hash FROM auth_users WHERE email = $1 OR username = $1 ORDER BY email = $1 DESC LIMIT 1",
		login,
	).Scan(&au.ID, &au.Email, &au.Username, &hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidLogin
	}

	d.mu.Lock()
	d.session = &au
	d.mu.Unlock()

	d.notify(ctx, domain.AuthSignedIn, &au)
	return &au, nil
}

// SignOut ends the current session.
func (d *DB) SignOut(ctx context.Context) error {
	d.mu.Lock()
	had := d.session != nil
	d.session = nil
	d.mu.Unlock()

	if had {
		d.notify(ctx, domain.AuthSignedOut, nil)
	}
	return nil
}

// Session returns the identity of the current session, or nil.
func (d *DB) Session(context.Context) (*domain.AuthUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil, nil
	}
	au := *d.session
	return &au, nil
}

// OnAuthStateChange registers fn for sign-in and sign-out events.
func (d *DB) OnAuthStateChange(fn domain.AuthListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *DB) notify(ctx context.Context, event domain.AuthEvent, au *domain.AuthUser) {
	d.mu.Lock()
	listeners := slices.Clone(d.listeners)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, event, au)
	}
}
