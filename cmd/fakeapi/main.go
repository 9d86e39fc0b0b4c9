package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tulipapi/internal/config"
	"github.com/JonMunkholm/tulipapi/internal/fakeapi"
	"github.com/JonMunkholm/tulipapi/internal/logging"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	store := fakeapi.NewStore()
	if cfg.FakeAPI.Seed != "" {
		if err := fakeapi.LoadSeedFile(store, cfg.FakeAPI.Seed); err != nil {
			slog.Error("failed to load seed", "path", cfg.FakeAPI.Seed, "error", err)
			os.Exit(1)
		}
		slog.Info("seed loaded", "path", cfg.FakeAPI.Seed)
	}

	var tokens []string
	if cfg.FakeAPI.Token != "" {
		tokens = append(tokens, cfg.FakeAPI.Token)
	} else {
		slog.Warn("no FAKEAPI_TOKEN set, accepting any credentials")
	}

	server := fakeapi.NewServer(store, fakeapi.Options{Tokens: tokens})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FakeAPI.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.FakeAPI.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
