package main

import (
	"errors"

	"nimproxy/internal/config"
	logpkg "nimproxy/internal/log"
	"nimproxy/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	defer func() {
		if appLog, ok := logger.(*logpkg.AppLogger); ok {
			_ = appLog.Close()
		}
	}()

	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}
	logger.Info("Logger initialized")

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if errors.Is(err, config.ErrMissingAPIKey) {
		logger.Fatal("NIM_API_KEY environment variable is not set. Export it or add it to .env before starting the proxy.")
	}
	if err != nil {
		logger.Fatal("Failed to load server configuration: %v", err)
	}

	cfg.Logger = logger

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if err := srv.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
