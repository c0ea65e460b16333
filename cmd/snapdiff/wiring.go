package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/snapdiff/internal/config"
	"github.com/JonMunkholm/snapdiff/internal/core"
	"github.com/JonMunkholm/snapdiff/internal/sink"
	"github.com/JonMunkholm/snapdiff/internal/source"
)

// needsDatabase reports whether any source or sink uses PostgreSQL.
func needsDatabase(sources, sinks []string) bool {
	if slices.Contains(sinks, "postgres") {
		return true
	}
	for _, src := range sources {
		if scheme, ok := source.Scheme(src); ok && scheme == "postgres" {
			return true
		}
	}
	return false
}

// openPool connects to PostgreSQL with the configured pool settings.
func openPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	if dc.URL == "" {
		return nil, errors.New("database unavailable: DATABASE_URL is not set")
	}

	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unavailable: %w", err)
	}

	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// newLoader builds the source multiplexer. CSV paths are only resolved when
// allowFiles is set; postgres: sources need a pool.
func newLoader(cfg *config.Config, pool *pgxpool.Pool, allowFiles bool) (*source.Mux, *source.CSVLoader) {
	csvLoader := source.NewCSVLoader(cfg.Compare.DelimiterRune(), cfg.Compare.NullValues)

	var fallback core.SnapshotLoader
	if allowFiles {
		fallback = csvLoader
	}
	mux := source.NewMux(fallback)
	if allowFiles {
		mux.Register("csv", csvLoader)
	}
	if pool != nil {
		mux.Register("postgres", source.NewPostgresLoader(pool, cfg.Database.IgnoreColumns, csvLoader.Normalizer))
	}
	return mux, csvLoader
}

// sinkSet is the configured report sinks plus what must be closed afterwards.
type sinkSet struct {
	sink    core.ReportSink
	store   sink.Store
	closers []io.Closer
}

func (s *sinkSet) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			slog.Warn("close report store", "error", err)
		}
	}
}

// newSinks builds the sinks named in cfg.Report.Sinks. The first storage
// sink (sqlite or postgres) is also returned as the report store.
func newSinks(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, stdout io.Writer, color bool) (*sinkSet, error) {
	set := &sinkSet{}
	var sinks sink.Multi

	for _, name := range cfg.Report.Sinks {
		switch name {
		case "file":
			sinks = append(sinks, &sink.FileSink{
				Dir:     cfg.Report.Dir,
				Formats: cfg.Report.Formats,
				Title:   cfg.Report.Title,
			})
		case "stdout":
			sinks = append(sinks, &sink.ConsoleSink{
				W:      stdout,
				Format: cfg.Report.Formats[0],
				Title:  cfg.Report.Title,
				Color:  color,
			})
		case "sqlite":
			store, err := sink.OpenSQLite(cfg.SQLite.Path, cfg.Report.Title)
			if err != nil {
				set.Close()
				return nil, err
			}
			set.closers = append(set.closers, store)
			sinks = append(sinks, store)
			if set.store == nil {
				set.store = store
			}
		case "postgres":
			if pool == nil {
				set.Close()
				return nil, errors.New("database unavailable: postgres sink needs DATABASE_URL")
			}
			store := sink.NewPostgresStore(pool, cfg.Report.Title)
			if err := store.EnsureSchema(ctx); err != nil {
				set.Close()
				return nil, err
			}
			sinks = append(sinks, store)
			if set.store == nil {
				set.store = store
			}
		default:
			set.Close()
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}

	switch len(sinks) {
	case 0:
	case 1:
		set.sink = sinks[0]
	default:
		set.sink = sinks
	}
	return set, nil
}
