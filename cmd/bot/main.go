package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohdsabahat/anime-bot/internal/bot"
	"github.com/mohdsabahat/anime-bot/internal/catalog"
	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/cleanup"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/common/logger"
	"github.com/mohdsabahat/anime-bot/internal/common/messaging"
	"github.com/mohdsabahat/anime-bot/internal/downloader"
	"github.com/mohdsabahat/anime-bot/internal/events"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/internal/media"
	"github.com/mohdsabahat/anime-bot/internal/provider/animepahe"
	"github.com/mohdsabahat/anime-bot/internal/task"
	"github.com/mohdsabahat/anime-bot/internal/uploader"
	"github.com/mohdsabahat/anime-bot/pkg/utils"
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

	telegramCfg := cfg.GetTelegramConfig()
	if telegramCfg.BotToken == "" {
		log.Fatal("telegram.botToken is required")
	}
	if telegramCfg.VaultChannelID == 0 {
		log.Fatal("telegram.vaultChannelId is required")
	}

	downloaderCfg := cfg.GetDownloaderConfig()
	log.Infof("Downloader configuration: %+v", downloaderCfg)

	// Partial downloads from a previous run are unusable
	if err := utils.ClearFolder(downloaderCfg.DownloadDir); err != nil {
		log.WithError(err).Warn("Failed to clear download directory")
	}

	// Open the upload ledger
	store, err := ledger.Open(cfg.GetDatabaseConfig().Path)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %s", err)
	}
	defer store.Close()

	// Connect the chat surface
	tg, err := chat.NewTelegram(telegramCfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to Telegram: %s", err)
	}

	// Provider client and the catalog cache it refreshes
	pahe := animepahe.New(cfg.GetProviderConfig(), cfg.GetCatalogConfig(), log)
	cache := catalog.NewCache(cfg.GetCatalogConfig(), pahe, log)

	// The event bus is optional, the pipeline runs without it
	var pub *events.Publisher
	if cfg.RabbitMq.URL != "" {
		msgClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMq, log)
		if err != nil {
			log.WithError(err).Warn("Event bus unavailable, continuing without it")
		} else {
			defer msgClient.Close()
			pub = events.NewPublisher(msgClient, log)
		}
	}

	// Assemble the pipeline
	engine := downloader.New(downloaderCfg, pahe, log)
	gate := uploader.NewGate(cfg.GetUploaderConfig(), tg, log)
	ffmpeg := media.New(log)
	runner := task.New(cfg, engine, gate, store, ffmpeg, pub, log)

	svc := bot.New(tg, pahe, cache, store, runner, downloaderCfg, log)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Retention sweeper for finished downloads
	sweeper := cleanup.NewSweeper(cfg.GetCleanupConfig(), downloaderCfg, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Chat update loop
	updates := tg.Updates()
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Run(ctx, updates)
	}()

	log.Info("Bot started successfully")

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a termination signal
	sig := <-sigCh
	log.Infof("Received signal %s, shutting down...", sig)

	// Trigger graceful shutdown
	cancel()
	tg.StopUpdates()
	wg.Wait()
}
