package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chatkit/chatroom"
	"github.com/chatkit/chatroom/internal/config"
	"github.com/chatkit/chatroom/internal/constants"
)

// shutdownTimeout bounds how long draining takes on SIGTERM.
const shutdownTimeout = 10 * time.Second

// initializeLogger builds the structured logger from configuration.
func initializeLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// newHTTPServer creates an HTTP server with production-safe timeout
// defaults. WriteTimeout stays disabled: a parked long-poll has no
// upper bound and a write deadline would sever it mid-park.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  constants.HTTPReadTimeout,
		WriteTimeout: constants.HTTPWriteTimeout,
		IdleTimeout:  constants.HTTPIdleTimeout,
	}
}

// setupSignalHandler sets up signal handling for graceful shutdown.
func setupSignalHandler() chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// runWithSignalChannel is a testable version of run that accepts a
// signal channel.
func runWithSignalChannel(sigChan chan os.Signal) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := initializeLogger(cfg)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	svc, err := chatroom.Register(engine, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to register chatroom service: %w", err)
	}

	srv := newHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port), engine)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Resolve parked long-polls first so they do not hold up
	// connection draining, then drain the HTTP server.
	if err := svc.Shutdown(ctx); err != nil {
		logger.Warn("Service shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// runMain is the testable main function.
func runMain() error {
	sigChan := setupSignalHandler()
	return runWithSignalChannel(sigChan)
}

func main() {
	if err := runMain(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
