package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/melodia/internal/database"
	"github.com/weiwangfds/melodia/internal/logger"
	"github.com/weiwangfds/melodia/internal/router"
	"github.com/weiwangfds/melodia/internal/storage"
	"golang.org/x/net/http2"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			db, err := ctx.openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if migrate {
				if err := database.Migrate(db); err != nil {
					return err
				}
			}

			provider, err := storage.New(cfg.Storage)
			if err != nil {
				return err
			}
			probeCtx, cancelProbe := context.WithTimeout(cmd.Context(), 10*time.Second)
			if err := provider.TestConnection(probeCtx); err != nil {
				logger.WithField("provider", provider.Name()).Warnf("[serve] storage connection test failed: %v", err)
			}
			cancelProbe()

			r := router.NewRouter(cfg, db, provider)

			srv := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      r.GetEngine(),
				ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
				WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			}
			if cfg.Server.EnableTLS {
				srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
				if cfg.Server.EnableHTTP2 {
					if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
						return fmt.Errorf("failed to configure HTTP/2: %w", err)
					}
				}
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := r.Janitor().Start(sigCtx); err != nil {
				return err
			}
			defer r.Janitor().Stop()

			errCh := make(chan error, 1)
			go func() {
				logger.WithFields(map[string]interface{}{
					"addr":  srv.Addr,
					"tls":   cfg.Server.EnableTLS,
					"http2": cfg.Server.EnableTLS && cfg.Server.EnableHTTP2,
				}).Info("[serve] listening")

				var err error
				if cfg.Server.EnableTLS {
					err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
				} else {
					err = srv.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err, ok := <-errCh:
				if ok {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-sigCtx.Done():
			}

			logger.Info("[serve] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("forced shutdown: %w", err)
			}
			logger.Info("[serve] stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply schema migrations before serving")
	return cmd
}
