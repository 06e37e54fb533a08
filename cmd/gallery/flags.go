package main

import (
	"fmt"
	"slices"

	"gallery/internal/adapter/natskv"
	"gallery/internal/clicfg"
	"gallery/internal/config"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

func oneOf(allowed ...string) func(string) error {
	return func(value string) error {
		if !slices.Contains(allowed, value) {
			return fmt.Errorf("invalid value: %s, allowed values are: %s", value, allowed)
		}
		return nil
	}
}

var logLevelFlag = &cli.StringFlag{
	Name:      "log-level",
	Aliases:   []string{"l"},
	Usage:     "The level of the logs",
	Value:     "info",
	Validator: oneOf(validLogLevels...),
	Sources:   cli.EnvVars("LOG_LEVEL"),
}

var storageFlags = []cli.Flag{
	&cli.StringFlag{
		Name:      "store",
		Usage:     "Where the local cache is kept: memory, file or nats",
		Value:     config.StoreFile,
		Validator: oneOf(config.StoreMemory, config.StoreFile, config.StoreNATS),
		Sources:   cli.EnvVars("GALLERY_STORE"),
	},
	&cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Directory of the file store",
		Value:   "data",
		Sources: cli.EnvVars("GALLERY_DATA_DIR"),
	},
	&cli.StringFlag{
		Name:    "nats-url",
		Aliases: []string{"n"},
		Usage:   "The URL of the NATS server",
		Value:   libnats.DefaultURL,
		Sources: cli.EnvVars("NATS_URL"),
	},
	&cli.StringFlag{
		Name:    "nats-bucket",
		Usage:   "The JetStream key-value bucket of the nats store",
		Value:   natskv.DefaultBucket,
		Sources: cli.EnvVars("NATS_BUCKET"),
	},
	&cli.StringFlag{
		Name:      "backend",
		Usage:     "Remote backend: none, supabase or postgres",
		Value:     config.BackendNone,
		Validator: oneOf(config.BackendNone, config.BackendSupabase, config.BackendPostgres),
		Sources:   cli.EnvVars("GALLERY_BACKEND"),
	},
	&cli.StringFlag{
		Name:    "supabase-url",
		Usage:   "URL of the Supabase project",
		Sources: cli.EnvVars("SUPABASE_URL"),
	},
	&cli.StringFlag{
		Name:    "supabase-anon-key",
		Usage:   "Anonymous API key of the Supabase project",
		Sources: cli.EnvVars("SUPABASE_ANON_KEY"),
	},
	&cli.StringFlag{
		Name:    "database-url",
		Usage:   "PostgreSQL connection string of the postgres backend",
		Sources: cli.EnvVars("DATABASE_URL"),
	},
}

var serveFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "addr",
		Usage:   "Listen address",
		Value:   ":8080",
		Sources: cli.EnvVars("ADDR"),
	},
	&cli.StringFlag{
		Name:    "web-dir",
		Usage:   "Directory of the frontend, empty to serve the API only",
		Sources: cli.EnvVars("WEB_DIR"),
	},
	&cli.StringFlag{
		Name:    "oidc-issuer",
		Usage:   "OpenID Connect issuer URL, enables SSO",
		Sources: cli.EnvVars("OIDC_ISSUER"),
	},
	&cli.StringFlag{
		Name:    "oidc-client-id",
		Sources: cli.EnvVars("OIDC_CLIENT_ID"),
	},
	&cli.StringFlag{
		Name:    "oidc-client-secret",
		Sources: cli.EnvVars("OIDC_CLIENT_SECRET"),
	},
	&cli.StringFlag{
		Name:    "oidc-redirect-url",
		Sources: cli.EnvVars("OIDC_REDIRECT_URL"),
	},
}

// loadConfig collects the flags of c into a validated Config.
func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if err := clicfg.ParseFlags(c, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
