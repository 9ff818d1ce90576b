package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/embassy-watch/embassy-eye/api"
	"github.com/embassy-watch/embassy-eye/config"
	"github.com/embassy-watch/embassy-eye/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run-statistics HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		initLogger(cfg.Log)

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		router := api.NewRouter(st, cfg, version, time.Now())

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}
		slog.Info("shutdown signal received")

		// Give in-flight requests 5 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
			return err
		}
		slog.Info("HTTP server drained gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
