package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/diagnose/diagnose/internal/config"
	"github.com/diagnose/diagnose/internal/domain/diagnosis"
	"github.com/diagnose/diagnose/internal/domain/rules"
	"github.com/diagnose/diagnose/internal/platform/db"
	"github.com/diagnose/diagnose/internal/platform/logging"
	"github.com/diagnose/diagnose/internal/platform/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "diagnose",
		Short:        "Certainty-factor diagnosis engine",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(inferCmd())
	root.AddCommand(rulesCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the diagnosis API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Env, cfg.LogLevel)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSource builds the configured rule source. The returned pool is nil for
// file sources; callers close it when non-nil.
func openSource(ctx context.Context, cfg *config.Config) (rules.Source, *pgxpool.Pool, error) {
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, db.PoolOptions{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return rules.NewPGSource(pool, ""), pool, nil
	}

	var format rules.Format
	if cfg.RulesFormat != "" {
		f, err := rules.ParseFormat(cfg.RulesFormat)
		if err != nil {
			return nil, nil, err
		}
		format = f
	}
	return rules.NewFileSource(cfg.RulesPath, format), nil, nil
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	src, pool, err := openSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open rule source: %w", err)
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to database")
	}

	metrics := telemetry.New()
	store, err := rules.NewStore(ctx, src, logger, rules.WithReloadHook(func(snap *rules.Snapshot, err error) {
		if err != nil {
			metrics.ObserveReload(0, 0, err)
			return
		}
		metrics.ObserveReload(len(snap.Rules), snap.Version, nil)
	}))
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	catalog, err := diagnosis.LoadCatalog(cfg.NamesPath)
	if err != nil {
		return err
	}
	svc := diagnosis.NewService(store, catalog, logger, diagnosis.WithInferenceHook(func(res *diagnosis.Result) {
		metrics.ObserveInference(len(res.Evidence))
	}))

	e := newServer(cfg, logger, svc, pool, metrics)

	g, ctx := errgroup.WithContext(ctx)
	if fileSrc, ok := src.(*rules.FileSource); ok && cfg.RulesWatch {
		g.Go(func() error {
			return store.Watch(ctx, fileSrc.Path())
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("rules", store.String()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
