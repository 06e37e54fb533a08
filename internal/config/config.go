// Package config holds the runtime configuration of the gallery service.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreNATS   = "nats"
)

// Backend kinds. BackendNone selects the local variant.
const (
	BackendNone     = "none"
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is filled from command-line flags, which fall back to environment
// variables. Tags name the flag of each field for clicfg.ParseFlags.
type Config struct {
	Addr     string `flag:"addr"`
	WebDir   string `flag:"web-dir"`
	LogLevel string `flag:"log-level"`

	Store      string `flag:"store"`
	DataDir    string `flag:"data-dir"`
	NATSURL    string `flag:"nats-url"`
	NATSBucket string `flag:"nats-bucket"`

	Backend         string `flag:"backend"`
	SupabaseURL     string `flag:"supabase-url"`
	SupabaseAnonKey string `flag:"supabase-anon-key"`
	DatabaseURL     string `flag:"database-url"`

	OIDCIssuer       string `flag:"oidc-issuer"`
	OIDCClientID     string `flag:"oidc-client-id"`
	OIDCClientSecret string `flag:"oidc-client-secret"`
	OIDCRedirectURL  string `flag:"oidc-redirect-url"`
}

// Remote reports whether a remote backend is configured.
func (c *Config) Remote() bool {
	return c.Backend != "" && c.Backend != BackendNone
}

// SSOEnabled reports whether OIDC sign-in is configured. It is only valid
// without a remote backend.
func (c *Config) SSOEnabled() bool {
	return c.OIDCIssuer != ""
}

// Validate checks that the settings required by the selected store, backend
// and SSO provider are present.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.DataDir == "" {
			errs = append(errs, errors.New("data-dir is required for the file store"))
		}
	case StoreNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("nats-url is required for the nats store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}

	switch c.Backend {
	case "", BackendNone:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("supabase-url and supabase-anon-key are required for the supabase backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database-url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	oidc := []string{c.OIDCIssuer, c.OIDCClientID, c.OIDCClientSecret, c.OIDCRedirectURL}
	if slices.Contains(oidc, "") && slices.ContainsFunc(oidc, func(s string) bool { return s != "" }) {
		errs = append(errs, errors.New("oidc-issuer, oidc-client-id, oidc-client-secret and oidc-redirect-url must be set together"))
	}
	if c.SSOEnabled() && c.Remote() {
		errs = append(errs, errors.New("oidc sign-in is not supported with a remote backend"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
