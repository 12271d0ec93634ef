// Package uploader bounds how many file transfers run against the chat
// backend at once.
package uploader

import (
	"context"
	"fmt"

	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// defaultConcurrency is used when the configured limit is not positive.
const defaultConcurrency = 2

// Gate serializes uploads beyond the configured concurrency limit. Calls
// block until a slot frees up; the slot is released on every exit path.
type Gate struct {
	client chat.Client
	sem    *semaphore.Weighted
	log    *logrus.Logger
}

// NewGate wraps the chat client with an admission gate.
func NewGate(cfg *config.UploaderConfig, client chat.Client, log *logrus.Logger) *Gate {
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	return &Gate{
		client: client,
		sem:    semaphore.NewWeighted(int64(limit)),
		log:    log,
	}
}

// Upload sends the file once an upload slot is free, holding the slot for
// the whole transfer.
func (g *Gate) Upload(ctx context.Context, chatID int64, path, caption, thumbPath string, duration int, progress chat.ProgressFunc) (*chat.MessageHandle, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for upload slot: %w", err)
	}
	defer g.sem.Release(1)

	g.log.WithFields(logrus.Fields{
		"file":    path,
		"chat_id": chatID,
	}).Debug("Upload slot acquired")

	return g.client.SendFile(ctx, chatID, path, caption, thumbPath, duration, progress)
}
