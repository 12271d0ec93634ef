// Package events publishes task lifecycle messages onto the event bus for
// the web monitor. The bus is an optional sink: a nil Publisher drops
// everything, and publish failures never reach the pipeline.
package events

import (
	"time"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/common/messaging"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

// Publisher emits TaskEvent messages for a running batch.
type Publisher struct {
	client messaging.Client
	log    *logrus.Logger
}

// NewPublisher wraps a messaging client. The exchange is the one declared
// by the client itself.
func NewPublisher(client messaging.Client, log *logrus.Logger) *Publisher {
	return &Publisher{
		client: client,
		log:    log,
	}
}

// Status emits a lifecycle event for a task or one of its episodes.
func (p *Publisher) Status(taskID, title string, episode int, status, message string) {
	if p == nil {
		return
	}

	p.publish(config.RoutingTaskStatus, models.TaskEvent{
		TaskID:    taskID,
		Title:     title,
		Episode:   episode,
		Status:    status,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// Progress emits the byte progress of an episode upload.
func (p *Publisher) Progress(taskID, title string, episode int, info models.ProgressInfo) {
	if p == nil {
		return
	}

	p.publish(config.RoutingTaskProgress, models.TaskEvent{
		TaskID:    taskID,
		Title:     title,
		Episode:   episode,
		Status:    models.StatusUploading,
		Progress:  &info,
		Timestamp: time.Now().UTC(),
	})
}

// Uploaded emits the terminal event for a delivered episode.
func (p *Publisher) Uploaded(taskID, title string, episode int, filename string) {
	if p == nil {
		return
	}

	p.publish(config.RoutingTaskUploaded, models.TaskEvent{
		TaskID:    taskID,
		Title:     title,
		Episode:   episode,
		Status:    models.StatusUploaded,
		Message:   filename,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(routingKey string, event models.TaskEvent) {
	if err := p.client.PublishJSON("", routingKey, event); err != nil {
		p.log.WithError(err).WithField("routing_key", routingKey).Warn("Failed to publish task event")
	}
}
