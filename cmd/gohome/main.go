package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/core"
	"github.com/joshp123/gohome-purifier/internal/logging"
	"github.com/joshp123/gohome-purifier/internal/plugins"
	"github.com/joshp123/gohome-purifier/internal/router"
	"github.com/joshp123/gohome-purifier/internal/server"
)

func main() {
	app := &cli.App{
		Name:  "gohome",
		Usage: "air purifier daemon: HTTP API, metrics, gRPC health and MQTT bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"GOHOME_CONFIG"},
				Value:   config.DefaultPath,
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"))
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	compiled := plugins.Compiled(ctx, cfg, logger)
	if err := core.ValidatePlugins(compiled); err != nil {
		return err
	}
	enabled, enableAll := cfg.Core.Enabled()
	if err := core.ValidateEnabledPlugins(compiled, enabled, enableAll); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, enableAll)
	for _, p := range active {
		logger.Info("plugin loaded",
			zap.String("plugin", p.ID()),
			zap.String("health", string(p.Health())),
			zap.String("message", p.HealthMessage()),
		)
	}

	if err := core.WriteDashboards(cfg.Core.DashboardsDir, active); err != nil {
		return err
	}

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	metricsRegistry := core.MetricsRegistry(active)
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", server.HealthHandler)
	httpMux.Handle("/metrics", server.MetricsHandler(metricsRegistry))
	httpMux.Handle("/dashboards/", server.DashboardsHandler(core.DashboardsMap(active)))
	router.RegisterPlugins(httpMux, grpcServer.Health, active)

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.LoggingMiddleware(logger, httpMux))

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.Core.HTTPAddr))
		return httpServer.ListenAndServe()
	})

	eg.Go(func() error {
		logger.Info("grpc listening", zap.String("addr", cfg.Core.GRPCAddr))
		return grpcServer.Serve()
	})

	for _, p := range active {
		runner, ok := p.(core.Runner)
		if !ok {
			continue
		}
		id := p.ID()
		eg.Go(func() error {
			if err := runner.Run(ctx); err != nil {
				return fmt.Errorf("plugin %s: %w", id, err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
