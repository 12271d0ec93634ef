package chat

import (
	"context"
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/sirupsen/logrus"
)

// Telegram implements Client over the Telegram Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
	log *logrus.Logger
}

// NewTelegram connects and authenticates the bot account.
func NewTelegram(cfg *config.TelegramConfig, log *logrus.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.WithField("username", api.Self.UserName).Info("Telegram bot authorized")

	return &Telegram{
		api: api,
		log: log,
	}, nil
}

// Updates starts long polling and returns the update channel.
func (t *Telegram) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	return t.api.GetUpdatesChan(u)
}

// StopUpdates stops the long poll loop.
func (t *Telegram) StopUpdates() {
	t.api.StopReceivingUpdates()
}

// SendMessage sends a plain text message.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) (*MessageHandle, error) {
	msg, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &MessageHandle{ChatID: chatID, MessageID: msg.MessageID}, nil
}

// EditMessage replaces the text of a previously sent message.
func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// SendFile uploads a video file, streaming it through a counting reader so
// the progress callback sees byte-level movement.
func (t *Telegram) SendFile(ctx context.Context, chatID int64, path, caption, thumbPath string, duration int, progress ProgressFunc) (*MessageHandle, error) {
	reader, err := newProgressReader(path, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer reader.Close()

	video := tgbotapi.NewVideo(chatID, tgbotapi.FileReader{
		Name:   filepath.Base(path),
		Reader: reader,
	})
	video.Caption = caption
	video.SupportsStreaming = true
	video.Duration = duration
	if thumbPath != "" {
		video.Thumb = tgbotapi.FilePath(thumbPath)
	}

	t.log.WithFields(logrus.Fields{
		"file":    path,
		"size":    reader.total,
		"chat_id": chatID,
	}).Debug("Uploading file")

	msg, err := t.api.Send(video)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	return &MessageHandle{ChatID: chatID, MessageID: msg.MessageID}, nil
}

// CopyMessage re-delivers an existing message into another chat, falling
// back to a plain forward when copying is not allowed.
func (t *Telegram) CopyMessage(ctx context.Context, fromChatID int64, messageID int, toChatID int64) (*MessageHandle, error) {
	copied, err := t.api.CopyMessage(tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID))
	if err == nil {
		return &MessageHandle{ChatID: toChatID, MessageID: copied.MessageID}, nil
	}

	t.log.WithError(err).Warn("Copy failed, falling back to forward")

	msg, fwdErr := t.api.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID))
	if fwdErr != nil {
		return nil, fmt.Errorf("failed to copy message: %w", fwdErr)
	}

	return &MessageHandle{ChatID: toChatID, MessageID: msg.MessageID}, nil
}
