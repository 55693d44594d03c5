package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"trix/internal/api"
	"trix/internal/config"
	"trix/internal/logging"
	"trix/internal/middleware"
	"trix/internal/repository"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal("failed to get working directory:", err)
	}

	root, err := repository.FindRoot(cwd)
	if err != nil {
		log.Fatal("failed to find repository:", err)
	}

	// Load configuration
	cfg, err := config.Load(config.Path(filepath.Join(root, repository.DirName)))
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// The server holds the repository lock until it exits.
	repo, err := repository.Open(root, logger.Logger)
	if err != nil {
		logger.Fatal("failed to open repository", zap.Error(err))
	}
	defer repo.Close()

	historyHandler := api.NewHistoryHandler(repo, logger)

	// Apply middleware
	handler := middleware.Chain(
		historyHandler.Routes(),
		middleware.ReadOnly,
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	// Start server
	logger.Info("starting server", zap.String("address", addr), zap.String("root", root))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", zap.Error(err))
	}
}
