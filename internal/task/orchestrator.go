// Package task runs download batches end to end: every episode of a batch
// is downloaded, thumbnailed, uploaded into the vault channel and recorded
// in the ledger, with human-readable status lines reported along the way.
package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/downloader"
	"github.com/mohdsabahat/anime-bot/internal/events"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

// StatusFunc receives one human-readable status line per pipeline step.
// Implementations must not block; edits to a chat message are typical.
type StatusFunc func(text string)

// Downloader produces a local media file for one episode.
type Downloader interface {
	DownloadEpisode(ctx context.Context, title, slug string, ep models.Episode, quality int, audio string) downloader.Result
}

// Uploader delivers a finished file into a chat and reports byte progress.
type Uploader interface {
	Upload(ctx context.Context, chatID int64, path, caption, thumbPath string, duration int, progress chat.ProgressFunc) (*chat.MessageHandle, error)
}

// Ledger records completed deliveries.
type Ledger interface {
	InsertUploadedFile(ctx context.Context, rec ledger.UploadedFile) (ledger.UploadedFile, error)
}

// Thumbnailer inspects a video and extracts a representative frame.
type Thumbnailer interface {
	ProbeDuration(ctx context.Context, path string) float64
	ExtractFrame(ctx context.Context, videoPath, dir string, offsetSeconds float64) (string, error)
}

// Orchestrator executes batches strictly sequentially, one episode at a
// time. A failed episode never aborts the batch; every failure becomes a
// status line and the loop moves on.
type Orchestrator struct {
	downloaderCfg *config.DownloaderConfig
	uploaderCfg   *config.UploaderConfig
	vaultChatID   int64

	dl     Downloader
	up     Uploader
	ledger Ledger
	media  Thumbnailer
	events *events.Publisher
	log    *logrus.Logger
}

// New assembles an orchestrator from its collaborators. pub may be nil when
// no event bus is configured.
func New(cfg *config.Config, dl Downloader, up Uploader, store Ledger, media Thumbnailer, pub *events.Publisher, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		downloaderCfg: cfg.GetDownloaderConfig(),
		uploaderCfg:   cfg.GetUploaderConfig(),
		vaultChatID:   cfg.GetTelegramConfig().VaultChannelID,
		dl:            dl,
		up:            up,
		ledger:        store,
		media:         media,
		events:        pub,
		log:           log,
	}
}

// Run processes the batch's episodes in order. Episodes are separated by
// the configured inter-episode delay so the provider is never hammered.
func (o *Orchestrator) Run(ctx context.Context, batch Batch, status StatusFunc) {
	report := func(text string) {
		if status != nil {
			status(text)
		}
	}

	numbers := batch.EpisodeNumbers()
	o.log.WithFields(logrus.Fields{
		"task_id":  batch.ID,
		"title":    batch.Title,
		"episodes": numbers,
	}).Info("Starting download task")

	report(fmt.Sprintf("Starting task: %s episodes %v", batch.Title, numbers))
	o.events.Status(batch.ID, batch.Title, 0, models.StatusQueued, fmt.Sprintf("episodes %v", numbers))

	for _, ep := range batch.Episodes {
		o.processEpisode(ctx, batch, ep, report)
		o.pause(ctx)
	}

	report("Task finished.")
	o.events.Status(batch.ID, batch.Title, 0, models.StatusFinished, "Task finished.")
	o.log.WithField("task_id", batch.ID).Info("Task finished")
}

func (o *Orchestrator) processEpisode(ctx context.Context, batch Batch, ep models.Episode, report StatusFunc) {
	report(fmt.Sprintf("Preparing to download ep %d ...", ep.Number))
	o.events.Status(batch.ID, batch.Title, ep.Number, models.StatusPreparing, "")

	o.events.Status(batch.ID, batch.Title, ep.Number, models.StatusDownloading, "")
	res := o.dl.DownloadEpisode(ctx, batch.Title, batch.Slug, ep, batch.Quality, batch.Audio)
	if !res.Succeeded {
		report(fmt.Sprintf("Download failed ep %d: %s", ep.Number, res.Reason))
		o.events.Status(batch.ID, batch.Title, ep.Number, models.StatusFailed, res.Reason)
		return
	}

	duration := o.media.ProbeDuration(ctx, res.Filepath)
	thumb, err := o.media.ExtractFrame(ctx, res.Filepath, o.downloaderCfg.DownloadDir, duration/2)
	if err != nil {
		o.log.WithError(err).WithField("episode", ep.Number).Warn("Thumbnail extraction failed, uploading without one")
		thumb = ""
	}

	o.uploadEpisode(ctx, batch, ep, res, thumb, int(duration), report)

	if thumb != "" {
		if err := os.Remove(thumb); err != nil {
			o.log.WithError(err).WithField("thumbnail", thumb).Warn("Failed to delete thumbnail image")
		}
	}

	if o.uploaderCfg.DeleteAfterUpload && res.Filepath != "" {
		if err := os.Remove(res.Filepath); err != nil && !os.IsNotExist(err) {
			o.log.WithError(err).WithField("file", res.Filepath).Warn("Failed to delete downloaded file")
		}
	}
}

func (o *Orchestrator) uploadEpisode(ctx context.Context, batch Batch, ep models.Episode, res downloader.Result, thumb string, duration int, report StatusFunc) {
	filename := filepath.Base(res.Filepath)
	report(fmt.Sprintf("Uploading ep %d (%s) ...", ep.Number, filename))
	o.events.Status(batch.ID, batch.Title, ep.Number, models.StatusUploading, filename)

	debounce := newProgressDebouncer(o.uploaderCfg.ProgressInterval, o.uploaderCfg.ProgressStep)
	progress := func(current, total int64) {
		percent := 0
		if total > 0 {
			percent = int(current * 100 / total)
		}
		if !debounce.shouldEmit(percent) {
			return
		}
		report(fmt.Sprintf("Uploading ep %d: %d/%d MB (%d%%)", ep.Number, current/(1024*1024), total/(1024*1024), percent))
		o.events.Progress(batch.ID, batch.Title, ep.Number, models.ProgressInfo{
			Current: current,
			Total:   total,
			Percent: percent,
		})
	}

	caption := fmt.Sprintf("%s - Episode %d\n\nUploaded by: %d", batch.Title, ep.Number, batch.UploaderUserID)

	handle, err := o.up.Upload(ctx, o.vaultChatID, res.Filepath, caption, thumb, duration, progress)
	if err != nil {
		o.log.WithError(err).WithField("episode", ep.Number).Error("Upload failed")
		report(fmt.Sprintf("Upload failed for ep %d: %v", ep.Number, err))
		o.events.Status(batch.ID, batch.Title, ep.Number, models.StatusFailed, err.Error())
		return
	}

	o.recordDelivery(ctx, batch, ep, res, handle, filename)

	report(fmt.Sprintf("Uploaded ep %d successfully.", ep.Number))
	o.events.Uploaded(batch.ID, batch.Title, ep.Number, filename)
}

// recordDelivery writes the ledger row for a delivered episode. The file
// already reached the vault, so an insert failure is logged and absorbed.
func (o *Orchestrator) recordDelivery(ctx context.Context, batch Batch, ep models.Episode, res downloader.Result, handle *chat.MessageHandle, filename string) {
	var filesize int64
	if info, err := os.Stat(res.Filepath); err == nil {
		filesize = info.Size()
	}

	rec := ledger.UploadedFile{
		AnimeTitle:        batch.Title,
		Episode:           ep.Number,
		UploadedChatID:    handle.ChatID,
		UploaderUserID:    batch.UploaderUserID,
		UploadedMessageID: handle.MessageID,
		VaultChatID:       handle.ChatID,
		VaultMessageID:    handle.MessageID,
		Language:          res.Audio,
		Quality:           res.Quality,
		Filename:          filename,
		Filesize:          filesize,
	}
	if _, err := o.ledger.InsertUploadedFile(ctx, rec); err != nil {
		o.log.WithError(err).WithFields(logrus.Fields{
			"title":   batch.Title,
			"episode": ep.Number,
		}).Error("Ledger insert failed")
	}
}

// pause waits the inter-episode delay, returning early on shutdown.
func (o *Orchestrator) pause(ctx context.Context) {
	delay := time.Duration(o.uploaderCfg.RateLimitSeconds * float64(time.Second))
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
