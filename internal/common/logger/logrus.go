package logger

import (
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/sirupsen/logrus"
)

// New creates the shared logger configured from app settings.
func New(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	level := logrus.Level(cfg.App.LogLevel)
	if level > logrus.TraceLevel {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	return log
}
