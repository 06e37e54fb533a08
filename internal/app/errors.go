package app

import "errors"

var (
	// ErrInvalidInput indicates a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUsernameTaken indicates that a local account with the username exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials indicates that the provided identifier or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden indicates that the user lacks the creator role.
	ErrForbidden = errors.New("creator role required")
	// ErrNotAuthenticated indicates that the operation needs a signed-in user.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrPostNotFound indicates that the post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrIdentityUnsupported indicates that external identity sign-in is not
	// available with the configured storage.
	ErrIdentityUnsupported = errors.New("identity sign-in not supported")
	// ErrUnavailable indicates that the remote backend failed. Details are
	// logged, not returned.
	ErrUnavailable = errors.New("operation failed")
)
