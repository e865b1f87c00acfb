package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kennybix/Shuttle/pkg/config"
	"github.com/kennybix/Shuttle/pkg/utils"
)

// main starts the bridge server (HTTP API + WebSocket gateway) and blocks
// until it exits or receives a termination signal.
func main() {
	// Initialize logging system
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("Could not write default config file", "error", err)
	}

	cfg, configFile, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("Configuration loaded", "file", configFile)

	// Make sure the transfer directories exist before anything stages into them.
	for _, dir := range []string{cfg.StagingDir(), cfg.DownloadsDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			logger.Warn("Could not create data directory", "dir", dir, "error", err)
		}
	}

	server := NewServer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
