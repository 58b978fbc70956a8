// Package main is the entry point for the billing manager API server.
//
// Its job is deliberately small:
// 1. Load the .env file (if present) and read configuration
// 2. Build the logger
// 3. Create and start the server
//
// All actual logic lives in the internal packages.
package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/billing-manager/internal/server"
)

// defaultOrigins covers the local web and native-dev clients this API is
// normally paired with.
var defaultOrigins = []string{
	"http://localhost:8081",
	"http://localhost:19006",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:5500",
	"http://127.0.0.1:5500",
}

func main() {
	// A missing .env is fine — real deployments set the environment
	// directly.
	_ = godotenv.Load()

	environment := envOr("APP_ENV", "development")

	level := slog.LevelInfo
	if environment == "development" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	port := 3000
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	providerURL := os.Getenv("SUPABASE_URL")
	providerAnonKey := os.Getenv("SUPABASE_ANON_KEY")
	if providerURL == "" || providerAnonKey == "" {
		logger.Error("SUPABASE_URL and SUPABASE_ANON_KEY must be set")
		os.Exit(1)
	}

	origins := defaultOrigins
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := server.Config{
		Port:            port,
		Environment:     environment,
		ProviderURL:     providerURL,
		ProviderAnonKey: providerAnonKey,
		AdminAPIKey:     os.Getenv("ADMIN_API_KEY"),
		AllowedOrigins:  origins,
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
