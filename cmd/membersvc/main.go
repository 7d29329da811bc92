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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joshrizzo/MyLib/internal/app"
	"github.com/joshrizzo/MyLib/internal/config"
	"github.com/joshrizzo/MyLib/internal/metrics"
	"github.com/joshrizzo/MyLib/internal/observability/logger"
	"github.com/joshrizzo/MyLib/internal/server"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:   "membersvc",
		Short: "Membership and role service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
	})
	defer func() { _ = log.Sync() }()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}
	defer a.Close()

	srv := server.New(a.Membership, a.Roles, log,
		server.WithJWT([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.AccessTTL()))

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("driver", cfg.Storage.Driver))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return httpSrv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", zap.Error(err))
		return err
	}
	return nil
}
