package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/graphql"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/devapi"
	"github.com/MrEthical07/goSession/internal/site"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	seedEmail    string
	seedPassword string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root.cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.seedEmail, "seed-email", "admin@example.com", "admin account created in the embedded API")
	cmd.Flags().StringVar(&opts.seedPassword, "seed-password", "change-me-please", "password of the seeded admin account")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts *serveOptions) error {
	logger := cfg.Log.NewLogger()

	endpoint := cfg.API.Endpoint
	var embedded http.Handler
	if endpoint == "" {
		dev, err := devapi.New(devapi.Config{
			Secret:       []byte(cfg.API.Secret),
			AccessTTL:    cfg.API.AccessTTL,
			RefreshDelay: cfg.API.RefreshDelay,
		})
		if err != nil {
			return err
		}
		if _, err := dev.Seed("Admin", opts.seedEmail, opts.seedPassword, "admin"); err != nil {
			return err
		}
		embedded = dev
		endpoint = "http://" + cfg.HTTP.Addr() + "/graphql"
		logger.Info("embedded api enabled", slog.String("endpoint", endpoint), slog.String("admin", opts.seedEmail))
	}

	api, err := graphql.NewClient(endpoint, graphql.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}))
	if err != nil {
		return err
	}

	builder := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithAPI(api).
		WithLogger(logger)
	if cfg.Session.Audit {
		builder = builder.WithAuditSink(goSession.NewSlogSink(logger, slog.LevelInfo))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	servers := []*http.Server{{
		Addr:              cfg.HTTP.Addr(),
		Handler:           site.NewRouter(engine, site.Options{Logger: logger, GraphQL: embedded}),
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prometheus.NewCollector(engine).Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
