package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fixity/internal/api"
	"fixity/internal/archive"
	"fixity/internal/config"
	"fixity/internal/logging"
	"fixity/internal/middleware"
	"fixity/internal/snapshot"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync()

	// Initialize BadgerDB
	db, err := archive.OpenDB(cfg.Archive.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	arch, err := archive.New(db, archive.Options{
		CacheSize: cfg.Archive.CacheSize,
		Logger:    logger.Logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize archive", zap.Error(err))
	}

	mux := http.NewServeMux()
	api.Register(mux, arch, logger,
		snapshot.WithWorkers(cfg.Scan.Workers),
		snapshot.WithBufferSize(cfg.Scan.BufferSize),
		snapshot.WithLogger(logger.Logger),
	)

	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recover(logger),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("address", addr), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		zap.String("address", addr),
		zap.String("environment", cfg.Environment),
		zap.String("archive", cfg.Archive.Path))

	if err := serve(ctx, srv, ln, logger, 30*time.Second); err != nil {
		logger.Error("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// serve runs srv on ln until ctx is done, then shuts it down and returns
// only once in-flight requests have finished or grace has elapsed, so the
// archive is never closed under a running check.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, logger *logging.Logger, grace time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), grace)
		defer cancelShutdown()
		done <- srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	cancel()

	if shutdownErr := <-done; shutdownErr != nil {
		logger.Error("shutdown failed", zap.Error(shutdownErr))
		if err == nil {
			err = shutdownErr
		}
	}
	return err
}
