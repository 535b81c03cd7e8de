// Command grocerly-docparser extracts grocery items from uploaded documents.
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
	"github.com/and161185/grocerly/internal/docparse"
	"github.com/and161185/grocerly/internal/limiter"
	"github.com/and161185/grocerly/internal/logging"
	grpcserver "github.com/and161185/grocerly/internal/server/grpc"
	"github.com/and161185/grocerly/internal/server/docapi"
	"github.com/and161185/grocerly/internal/server/httpx"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	cfg, warnings, err := config.LoadDocParser(os.Args[1:], os.Getenv)
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
		zap.Bool("requireAuth", cfg.RequireAuth),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.DocParser, logger *zap.Logger) error {
	ocr := newOCR(cfg.OCRLanguages, logger)
	if ocr == nil {
		logger.Warn("ocr unavailable; image uploads are rejected")
	}

	var verifier httpx.TokenVerifier
	if cfg.RequireAuth {
		verifier = auth.NewVerifier([]byte(cfg.JWTSecret))
	}

	limits := docapi.DefaultLimits()
	for _, l := range []limiter.Limiter{limits.Default, limits.Root, limits.Health} {
		if m, ok := l.(*limiter.Memory); ok {
			go m.Run(ctx, time.Minute)
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: docapi.NewRouter(docapi.Options{
			Parser:         docparse.New(ocr, logger),
			Verifier:       verifier,
			Limits:         limits,
			Origins:        cfg.AllowedOrigins,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Environment:    cfg.Environment,
			Log:            logger,
			TrustProxy:     cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	hc := grpcserver.NewHealth(logger, nil)
	hc.Probe(ctx)
	gs := grpcserver.NewServer(logger, hc, cfg.Environment != config.EnvProduction)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (http)", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("listening (grpc)", zap.String("addr", cfg.GRPCAddr))
		if err := gs.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	hc.Server().Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	gs.GracefulStop()
	return nil
}
