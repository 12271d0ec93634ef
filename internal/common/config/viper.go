package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

const (
	// Exchange name
	ExchangeName = "anime_events"

	// Routing Keys
	RoutingTaskStatus   = "task.status"
	RoutingTaskProgress = "task.progress"
	RoutingTaskUploaded = "task.uploaded"

	// Exchange Type
	ExchangeTypeTopic = "topic"
)

// Config is the struct that holds the configuration of the application
type Config struct {
	App        AppConfig        `json:"app"`
	Telegram   TelegramConfig   `json:"telegram"`
	Database   DatabaseConfig   `json:"database"`
	Provider   ProviderConfig   `json:"provider"`
	Catalog    CatalogConfig    `json:"catalog"`
	Downloader DownloaderConfig `json:"downloader"`
	Uploader   UploaderConfig   `json:"uploader"`
	Cleanup    CleanupConfig    `json:"cleanup"`
	RabbitMq   RabbitMQConfig   `json:"rabbitmq"`
	Web        WebConfig        `json:"web"`
}

type AppConfig struct {
	Name     string `json:"name"`
	LogLevel int    `json:"logLevel"`
	Env      string `json:"env"`
}

type TelegramConfig struct {
	BotToken       string `json:"botToken"`
	VaultChannelID int64  `json:"vaultChannelId"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ProviderConfig struct {
	BaseURL   string `json:"baseUrl"`
	UserAgent string `json:"userAgent"`
}

type CatalogConfig struct {
	SnapshotFile string `json:"snapshotFile"`
}

type DownloaderConfig struct {
	DownloadDir    string `json:"downloadDir"`
	TempDir        string `json:"tempDir"`
	SegmentWorkers int    `json:"segmentWorkers"`
	Quality        int    `json:"quality"`
	Audio          string `json:"audio"`
}

type UploaderConfig struct {
	Concurrency       int     `json:"concurrency"`
	DeleteAfterUpload bool    `json:"deleteAfterUpload"`
	RateLimitSeconds  float64 `json:"rateLimitSeconds"`
	ProgressInterval  int     `json:"progressInterval"`
	ProgressStep      int     `json:"progressStep"`
}

type CleanupConfig struct {
	ArchiveDir       string `json:"archiveDir"`
	RetentionSeconds int    `json:"retentionSeconds"`
}

type RabbitMQConfig struct {
	URL              string     `json:"url"`
	Exchange         string     `json:"exchange"`
	Queue            QueueNames `json:"queue"`
	ReconnectRetries int        `json:"reconnectRetries"`
	ReconnectTimeout int        `json:"reconnectTimeout"`
}

type WebConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type QueueNames struct {
	Events string `json:"events"`
}

// Load config from config.json
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // File name without extension
	v.SetConfigType("json")   // Set to JSON format
	v.AddConfigPath(".")      // Look for config file in current directory
	v.AutomaticEnv()

	setDefaults(v)

	// Try to read configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal JSON to Config struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override from environment variables if available
	if envToken := os.Getenv("TG_BOT_TOKEN"); envToken != "" {
		config.Telegram.BotToken = envToken
	}
	if envVault := os.Getenv("TG_VAULT_CHANNEL_ID"); envVault != "" {
		id, err := strconv.ParseInt(envVault, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TG_VAULT_CHANNEL_ID: %w", err)
		}
		config.Telegram.VaultChannelID = id
	}
	if envPath := os.Getenv("DATABASE_PATH"); envPath != "" {
		config.Database.Path = envPath
	}
	if envURL := os.Getenv("RABBITMQ_URL"); envURL != "" {
		config.RabbitMq.URL = envURL
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "anime-bot")
	v.SetDefault("app.logLevel", 4)
	v.SetDefault("app.env", "production")

	v.SetDefault("database.path", "./data/anime_files.db")

	v.SetDefault("provider.baseUrl", "https://animepahe.ru")
	v.SetDefault("provider.userAgent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")

	v.SetDefault("catalog.snapshotFile", "./data/anime_cache.txt")

	v.SetDefault("downloader.downloadDir", "./data/downloads")
	v.SetDefault("downloader.tempDir", "")
	v.SetDefault("downloader.segmentWorkers", 50)
	v.SetDefault("downloader.quality", 360)
	v.SetDefault("downloader.audio", "jpn")

	v.SetDefault("uploader.concurrency", 2)
	v.SetDefault("uploader.deleteAfterUpload", true)
	v.SetDefault("uploader.rateLimitSeconds", 1.0)
	v.SetDefault("uploader.progressInterval", 5)
	v.SetDefault("uploader.progressStep", 5)

	v.SetDefault("cleanup.archiveDir", "./data/archive")
	v.SetDefault("cleanup.retentionSeconds", 7*24*3600)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", ExchangeName)
	v.SetDefault("rabbitmq.queue.events", "anime_events_queue")
	v.SetDefault("rabbitmq.reconnectRetries", 5)
	v.SetDefault("rabbitmq.reconnectTimeout", 5)

	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)
}

// Get config for app
func (c *Config) GetAppConfig() *AppConfig {
	return &c.App
}

// Get config for the chat bot
func (c *Config) GetTelegramConfig() *TelegramConfig {
	return &c.Telegram
}

// Get config for the ledger database
func (c *Config) GetDatabaseConfig() *DatabaseConfig {
	return &c.Database
}

// Get config for the provider
func (c *Config) GetProviderConfig() *ProviderConfig {
	return &c.Provider
}

// Get config for the catalog cache
func (c *Config) GetCatalogConfig() *CatalogConfig {
	return &c.Catalog
}

// Get config for downloader
func (c *Config) GetDownloaderConfig() *DownloaderConfig {
	return &c.Downloader
}

// Get config for the retention sweeper
func (c *Config) GetCleanupConfig() *CleanupConfig {
	return &c.Cleanup
}

// Get config for uploader
func (c *Config) GetUploaderConfig() *UploaderConfig {
	return &c.Uploader
}

// Get config for the web API
func (c *Config) GetWebConfig() *WebConfig {
	return &c.Web
}

// Get config for RabbitMQ
func (c *Config) GetRabbitMQConfig() *RabbitMQConfig {
	return &c.RabbitMq
}
