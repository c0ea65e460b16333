package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				root.cfg.Server.Port = port
			}
			return runServe(cmd.Context(), root)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from SERVER_PORT)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions) error {
	cfg := root.cfg

	// Console output has no reader behind an HTTP server.
	cfg.Report.Sinks = slices.DeleteFunc(cfg.Report.Sinks, func(s string) bool { return s == "stdout" })

	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		p, err := openPool(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
	} else if slices.Contains(cfg.Report.Sinks, "postgres") {
		return errors.New("database unavailable: postgres sink needs DATABASE_URL")
	}

	loader, uploads := newLoader(cfg, pool, cfg.Server.AllowFileSources)
	sinks, err := newSinks(ctx, cfg, pool, nil, false)
	if err != nil {
		return err
	}
	defer sinks.Close()

	svc := core.NewService(loader, sinks.sink, core.ServiceConfig{
		LoadConcurrency:   cfg.Compare.LoadConcurrency,
		MaxConcurrentRuns: cfg.Server.MaxConcurrentRuns,
		MaxRunWait:        cfg.Server.MaxRunWait,
	})

	server, err := web.NewServer(web.Options{
		Service: svc,
		Uploads: uploads,
		Store:   sinks.store,
		Config:  cfg,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.Addr(),
			"sinks", cfg.Report.Sinks,
			"file_sources", cfg.Server.AllowFileSources,
		)
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if limiter := svc.Limiter(); limiter != nil {
		if err := limiter.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("comparisons still running at shutdown", "active", limiter.ActiveCount())
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
