package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mohdsabahat/anime-bot/internal/api"
	"github.com/mohdsabahat/anime-bot/internal/catalog"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/common/logger"
	"github.com/mohdsabahat/anime-bot/internal/common/messaging"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/internal/provider/animepahe"
)

func main() {
	// Load environment overrides from .env when present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(err)
	}

	// Load the configuration
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger
	log := logger.New(cfg)

	webCfg := cfg.GetWebConfig()
	log.Infof("Web API configuration: %+v", webCfg)

	// Open the upload ledger
	store, err := ledger.Open(cfg.GetDatabaseConfig().Path)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %s", err)
	}
	defer store.Close()

	// Provider client refreshes the catalog snapshot behind /api/search
	pahe := animepahe.New(cfg.GetProviderConfig(), cfg.GetCatalogConfig(), log)
	cache := catalog.NewCache(cfg.GetCatalogConfig(), pahe, log)

	// Without a broker the WebSocket feed stays silent
	var msgClient messaging.Client
	if cfg.RabbitMq.URL != "" {
		client, err := messaging.NewRabbitMQClient(&cfg.RabbitMq, log)
		if err != nil {
			log.WithError(err).Warn("Event bus unavailable, continuing without live events")
		} else {
			defer client.Close()
			msgClient = client
		}
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := api.NewServer(cfg, store, cache, msgClient, log)
	srv.Start(ctx)

	// Initialize the gin router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// Register routes
	srv.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", webCfg.Host, webCfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start the web server
	go func() {
		log.Infof("Starting web server on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a termination signal
	sig := <-sigCh
	log.Infof("Received signal %s, shutting down...", sig)

	// Trigger graceful shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Forced web server shutdown")
	}
}
