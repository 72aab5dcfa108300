package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trading-backbone/src/auth"
	"trading-backbone/src/config"
	"trading-backbone/src/events"
	"trading-backbone/src/gateway"
	"trading-backbone/src/interfaces"
	"trading-backbone/src/logger"
	"trading-backbone/src/models"
	"trading-backbone/src/pump"
	"trading-backbone/src/registry"
	"trading-backbone/src/server"
	"trading-backbone/src/sessions"
	"trading-backbone/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Credential store
	var store interfaces.ICredentialStore

	switch cfg.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteStore(cfg.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init credential store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate credential store: %v", err)
	}
	defer store.Close()

	// 2. Crypto and gateway plumbing
	box, err := auth.NewCredentialBox(cfg.Auth.CredentialKey)
	if err != nil {
		appLogger.Critical("Failed to init credential box: %v", err)
	}

	dialer := gateway.NewDialer(cfg.Gateway, appLogger)
	cache := sessions.NewCache(store, dialer, box, cfg.Sessions, appLogger)

	// 3. Platform tokens and the refresh cascade
	issuer := auth.NewTokenIssuer(cfg.Auth)
	coordinator := auth.NewCoordinator(issuer, func(ctx context.Context, subject string, channel models.Channel) error {
		_, err := cache.ForceRefresh(ctx, subject, channel)
		return err
	}, appLogger)

	// 4. Registry and streaming pumps
	reg := registry.NewRegistry(appLogger)
	pumps := pump.NewManager(cache, reg, cfg.Streaming, appLogger)
	reg.SetStreamController(pumps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Optional platform event bridge
	if cfg.Events.Enabled {
		bridge := events.NewBridge(cfg.Events, reg, appLogger)
		defer bridge.Close()
		go bridge.Run(ctx)
	}

	// 6. HTTP and websocket surface
	srv := server.NewServer(cfg.MConfig, coordinator, cache, reg, appLogger)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	appLogger.Info("Initialization complete.")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down...")
	cancel()
	pumps.StopAll()
}
