package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	adapthttp "gallery/internal/adapter/http"
	"gallery/internal/app"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const version = "0.1.0"

var cmd = &cli.Command{
	Name:    "gallery",
	Usage:   "Photo-sharing feed with local or hosted storage",
	Version: version,
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		return ctx, initLogger(c.String("log-level"))
	},
	Flags: []cli.Flag{
		logLevelFlag,
	},
	Commands: []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Serve the HTTP API",
			Flags:  slices.Concat(storageFlags, serveFlags),
			Action: serve,
		},
		{
			Name:   "init",
			Usage:  "Seed the cache with the demo user and posts, then exit",
			Flags:  storageFlags,
			Action: initStorage,
		},
	},
}

func main() {
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.storage.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	oidcConfig := adapthttp.OIDCConfig{}
	if cfg.SSOEnabled() {
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		oidcConfig = adapthttp.OIDCConfig{
			Enabled:  true,
			Provider: provider,
			OAuth2Config: oauth2.Config{
				ClientID:     cfg.OIDCClientID,
				ClientSecret: cfg.OIDCClientSecret,
				RedirectURL:  cfg.OIDCRedirectURL,
				Endpoint:     provider.Endpoint(),
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
		}
	}

	logger := slog.Default()
	authSvc := app.NewAuthService(env.storage, env.store)
	postSvc := app.NewPostService(env.storage, env.store)
	h := adapthttp.New(authSvc, postSvc, oidcConfig, cfg.WebDir, logger).Handler()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "store", cfg.Store, "backend", cfg.Backend, "sso", cfg.SSOEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func initStorage(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	env, err := openEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.storage.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	users, err := env.store.Users(ctx)
	if err != nil {
		return err
	}
	posts, err := env.store.Posts(ctx)
	if err != nil {
		return err
	}
	slog.Info("cache initialized", "store", cfg.Store, "users", len(users), "posts", len(posts))
	return nil
}
