package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/gorewood/shiftsheet/internal/auth"
	"github.com/gorewood/shiftsheet/internal/config"
	"github.com/gorewood/shiftsheet/internal/enrich"
	"github.com/gorewood/shiftsheet/internal/logging"
	shiftmcp "github.com/gorewood/shiftsheet/internal/mcp"
	"github.com/gorewood/shiftsheet/internal/output"
	"github.com/gorewood/shiftsheet/internal/tsheets"
)

// app holds the collaborators built from configuration for one command run.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   auth.Store
	backend shiftmcp.Backend
}

// close releases the token store and flushes the logger.
func (a *app) close() {
	closeStore(a.store)
	_ = a.logger.Sync()
}

// closeStore releases a store's connection, if it holds one.
func closeStore(store auth.Store) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}

// loadConfig reads configuration and builds the stderr logger.
func loadConfig(stderr io.Writer) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return nil, nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	return cfg, logger, nil
}

// openStore opens the configured token store.
func openStore(cfg *config.Config) (auth.Store, error) {
	store, err := auth.OpenStore(cfg.Tokens.Backend, cfg.Tokens.Path, cfg.Tokens.RedisURL)
	if err != nil {
		return nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	return store, nil
}

// openApp wires configuration, logging, the token store and the API client
// into an enrichment pipeline. Callers must call close on the result.
func openApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(stderr)
	if err != nil {
		return nil, err
	}

	// A static access token does not need the store.
	var store auth.Store
	if cfg.TSheets.AccessToken == "" {
		if store, err = openStore(cfg); err != nil {
			return nil, err
		}
	}

	httpClient, err := auth.NewHTTPClient(ctx, auth.Credentials{
		AccessToken:  cfg.TSheets.AccessToken,
		ClientID:     cfg.TSheets.ClientID,
		ClientSecret: cfg.TSheets.ClientSecret,
		TokenURL:     cfg.TSheets.TokenURL,
	}, store, logger)
	if err != nil {
		return nil, fmt.Errorf("preparing API client: %w", err)
	}

	client := tsheets.New(httpClient,
		tsheets.WithBaseURL(cfg.TSheets.BaseURL),
		tsheets.WithPageLimit(cfg.TSheets.PageLimit),
		tsheets.WithTimeout(cfg.TSheets.Timeout),
		tsheets.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		backend: enrich.NewPipeline(client, logger),
	}, nil
}

// backendFor returns the injected backend, or opens a real one. The returned
// func releases whatever was opened.
func backendFor(ctx context.Context, injected shiftmcp.Backend, stderr io.Writer) (shiftmcp.Backend, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}
	a, err := openApp(ctx, stderr)
	if err != nil {
		return nil, nil, err
	}
	return a.backend, a.close, nil
}
