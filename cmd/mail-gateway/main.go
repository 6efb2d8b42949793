package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/inboxagents/mail-gateway/internal/adapters/admin"
	"github.com/inboxagents/mail-gateway/internal/adapters/gateway"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	smtpGateway *gateway.Gateway,
	adminServer *admin.Server,
	configStore core.ConfigStore,
	scorer core.ContentScorer,
) error {
	defer logger.Sync()

	// Start the SMTP gateway
	if err := smtpGateway.Start(); err != nil {
		logger.Fatal("Failed to start SMTP gateway", zap.Error(err))
		return err
	}

	// Start the admin API
	if err := adminServer.Start(); err != nil {
		logger.Fatal("Failed to start admin API", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	if err := smtpGateway.Stop(); err != nil {
		logger.Error("Failed to stop SMTP gateway", zap.Error(err))
	}
	if err := adminServer.Stop(); err != nil {
		logger.Error("Failed to stop admin API", zap.Error(err))
	}

	// Close any resources that need closing
	if err := configStore.Close(); err != nil {
		logger.Error("Failed to close config store", zap.Error(err))
	}
	if closer, ok := scorer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close content scorer", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
