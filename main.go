// Package main implements the NetOps Gateway MCP (Model Context Protocol) server.
//
// The gateway fronts a mesh of platform MCP backends (Meraki, Catalyst
// Center, ThousandEyes, XDR, ISE, and friends) behind six role-based
// meta-tools, embeds the INFER analytics engine fed from the Redis event
// bus, and keeps its routing table fresh from the backend directory.
//
// The server communicates using the MCP protocol over stdio; the
// configured gateway port serves health, readiness, and Prometheus
// metrics endpoints only.
//
// Configuration is provided through environment variables:
//   - DIRECTORY_URL: Backend directory endpoint (default http://localhost:8888)
//   - REDIS_URL: Redis event bus URL (default redis://localhost:6379/0)
//   - GATEWAY_PORT: Health/metrics HTTP port (default 8000)
//   - DIRECTORY_AUTH_MODE: none, bearer, or basic (default none)
//   - CORRELATION_WINDOW_SECONDS: Event correlation window (default 300)
//   - ANOMALY_SENSITIVITY: Anomaly detection threshold 0..1 (default 0.85)
//   - LOG_LEVEL: debug, info, warn, or error (default info)
//   - ENVIRONMENT: Set to "production" for production logging
//
// Example usage:
//
//	export DIRECTORY_URL="http://directory:8888"
//	export REDIS_URL="redis://redis:6379/0"
//	./netops-gateway
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/netopscore/netops-gateway/internal/config"
	"github.com/netopscore/netops-gateway/internal/server"
)

// Build information - set at build time via ldflags
// For manual builds: make build VERSION=0.5.0
var (
	version = "dev"     // e.g., "v0.4.0" or "dev"
	commit  = "unknown" // Git commit SHA
	builtBy = "manual"  // "goreleaser" or "manual"
)

// main is the entry point for the NetOps Gateway MCP server.
// It initializes the server, loads configuration, and handles graceful shutdown.
func main() {
	// Load .env file if it exists (optional, for development)
	_ = godotenv.Load()

	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync() // Ignore error on cleanup
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	safe := cfg.Redact()
	logger.Info("Starting NetOps Gateway",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("built_by", builtBy),
		zap.String("directory", safe.DirectoryURL),
		zap.String("redis", safe.RedisURL),
		zap.Int("gateway_port", safe.GatewayPort),
		zap.String("environment", safe.Environment),
	)

	// Create and start MCP server
	mcpServer, err := server.New(cfg, logger, version)
	if err != nil {
		logger.Fatal("Failed to create MCP server", zap.Error(err))
	}

	// Setup graceful shutdown with timeout
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Channel to signal server completion
	serverDone := make(chan error, 1)

	go func() {
		serverDone <- mcpServer.Start(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
		cancel()
		return
	}

	// Initiate graceful shutdown with timeout
	logger.Info("Initiating graceful shutdown", zap.Duration("timeout", cfg.ShutdownTimeout))
	cancel()

	// Wait for server to finish with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-serverDone:
		logger.Info("Server shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing exit",
			zap.Duration("timeout", cfg.ShutdownTimeout))
	}

	// Allow a brief moment for final cleanup
	time.Sleep(100 * time.Millisecond)
}

// initLogger initializes and returns a zap logger.
// It creates a production logger if ENVIRONMENT=production, otherwise a
// development logger. Logs always go to stderr: the MCP protocol owns
// stdout.
func initLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.Set(strings.ToLower(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	var zapCfg zap.Config
	if os.Getenv("ENVIRONMENT") == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
