// Command grocerly-server serves the grocery list API, its realtime event
// stream and a gRPC health endpoint.
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

	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/auth"
	"github.com/and161185/grocerly/internal/config"
	"github.com/and161185/grocerly/internal/limiter"
	"github.com/and161185/grocerly/internal/logging"
	"github.com/and161185/grocerly/internal/migrate"
	"github.com/and161185/grocerly/internal/realtime"
	"github.com/and161185/grocerly/internal/repository/postgres"
	grpcserver "github.com/and161185/grocerly/internal/server/grpc"
	"github.com/and161185/grocerly/internal/server/httpapi"
	"github.com/and161185/grocerly/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	cfg, warnings, err := config.LoadServer(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("grpcAddr", cfg.GRPCAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Server, logger *zap.Logger) error {
	if err := migrate.Up(ctx, cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	// Repositories
	listRepo := postgres.NewListRepo(db)
	memberRepo := postgres.NewMemberRepo(db)
	itemRepo := postgres.NewItemRepo(db)

	// Services
	listSvc := service.NewListService(listRepo, memberRepo)
	memberSvc := service.NewMemberService(memberRepo)
	itemSvc := service.NewItemService(itemRepo, memberRepo, cfg.MaxBatch)

	hub := realtime.NewHub(logger)
	go realtime.NewListener(cfg.DatabaseURL, hub, logger).Run(ctx)

	api := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Lists:    listSvc,
			Items:    itemSvc,
			Members:  memberSvc,
			Hub:      hub,
			DB:       db,
			Verifier: auth.NewVerifier([]byte(cfg.JWTSecret)),
			Limiter:  limiter.NewPG(db.Pool, cfg.RateLimit, cfg.RateWindow),
			Origins:  cfg.AllowedOrigins,
			Log:      logger,

			TrustProxy: cfg.TrustProxy,
		}),
		// no WriteTimeout: event streams are long-lived
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	hc := grpcserver.NewHealth(logger, map[string]grpcserver.Pinger{"postgres": db})
	go hc.Run(ctx, 15*time.Second)
	gs := grpcserver.NewServer(logger, hc, cfg.Environment != config.EnvProduction)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (http)", zap.String("addr", cfg.Addr))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("listening (grpc)", zap.String("addr", cfg.GRPCAddr))
		if err := gs.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// graceful shutdown
	hc.Server().Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		gs.Stop()
	}
	return nil
}
