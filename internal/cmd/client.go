package cmd

import (
	"context"
	"os"

	"github.com/chirpwire/chirpwire/internal/core/engine"
	"github.com/chirpwire/chirpwire/internal/core/limits"
	"github.com/chirpwire/chirpwire/internal/core/store"
	"github.com/chirpwire/chirpwire/internal/observability"
	"github.com/chirpwire/chirpwire/internal/twitter"
)

// newClient assembles the authenticated API client: config, store,
// OAuth signing, and the rate limiter persisted across invocations.
// The caller owns the returned store and must close it.
func newClient(ctx context.Context) (*twitter.Client, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	auth := &twitter.Authenticator{
		ConsumerKey:    cfg.API.Key,
		ConsumerSecret: cfg.API.Secret,
		Cache:          db,
		Prompter:       twitter.StdinPrompter(os.Stdin, os.Stderr),
		Logger:         observability.CLILogger,
		Out:            os.Stderr,
	}

	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	httpClient.Timeout = cfg.API.Timeout

	limiter := engine.New(limits.Default())
	limiter.Store = db
	limiter.Logger = observability.CLILogger

	client := &twitter.Client{
		BaseURL:     cfg.API.BaseURL,
		HTTPClient:  httpClient,
		Limiter:     limiter,
		Identity:    db,
		Logger:      observability.CLILogger,
		AppID:       cfg.API.Key,
		Permissive:  cfg.RateLimit.Permissive,
		MaxAttempts: cfg.API.MaxAttempts,
		Uploader: &twitter.Uploader{
			UploadURL:  cfg.API.UploadURL,
			HTTPClient: httpClient,
			Logger:     observability.CLILogger,
		},
	}
	return client, db, nil
}
