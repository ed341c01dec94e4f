package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kdimtricp/lanepilot/internal/api"
	"github.com/kdimtricp/lanepilot/internal/config"
	"github.com/kdimtricp/lanepilot/internal/database"
	"github.com/kdimtricp/lanepilot/internal/logging"
	"github.com/kdimtricp/lanepilot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			logger := logging.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", cfg.Server.Bind)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Server.Bind, err)
			}
			return serve(runCtx, cfg, listener, logger)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address, overrides server.bind")
	return cmd
}

// serve runs the server on listener until ctx is cancelled, then drains
// requests and releases every stored blob.
func serve(ctx context.Context, cfg *config.Config, listener net.Listener, logger zerolog.Logger) error {
	store, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		return err
	}
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	// blobs are never meant to outlive the process that stored them
	if n, err := store.Purge(); err != nil {
		logger.Warn().Err(err).Msg("failed to purge stale uploads")
	} else if n > 0 {
		logger.Info().Int("files", n).Msg("purged stale uploads")
	}

	db, err := database.NewDB(database.Config{SQLitePath: cfg.Storage.DBPath, Logger: logger})
	if err != nil {
		return err
	}
	defer db.Close()

	app, err := api.NewApp(api.Options{
		Config:  cfg,
		Storage: store,
		DB:      db,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	logger.Info().
		Str("addr", listener.Addr().String()).
		Str("upload_dir", cfg.Storage.UploadDir).
		Str("db", cfg.Storage.DBPath).
		Str("max_upload", humanize.IBytes(uint64(cfg.Server.MaxUploadSize))).
		Msg("server starting")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// event streams only end when their sessions close
	app.Training.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
