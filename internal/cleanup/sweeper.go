// Package cleanup archives or deletes downloaded files once they outlive
// the configured retention period.
package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/sirupsen/logrus"
)

// sweepInterval is the pause between retention sweeps.
const sweepInterval = time.Hour

// Sweeper walks the download tree in the background and relocates aged
// files into the archive directory, deleting them when the move fails.
type Sweeper struct {
	cfg         *config.CleanupConfig
	downloadDir string
	log         *logrus.Logger
}

// NewSweeper creates a sweeper over the configured download and archive
// directories.
func NewSweeper(cfg *config.CleanupConfig, downloaderCfg *config.DownloaderConfig, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		cfg:         cfg,
		downloadDir: downloaderCfg.DownloadDir,
		log:         log,
	}
}

// Run sweeps until ctx is cancelled. The wait between cycles is
// interruptible so shutdown stays prompt.
func (s *Sweeper) Run(ctx context.Context) {
	if err := os.MkdirAll(s.downloadDir, 0o755); err != nil {
		s.log.WithError(err).Warn("Failed to create download directory")
	}
	if err := os.MkdirAll(s.cfg.ArchiveDir, 0o755); err != nil {
		s.log.WithError(err).Warn("Failed to create archive directory")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.sweep(time.Now())

		select {
		case <-ctx.Done():
			return
		case <-time.After(sweepInterval):
		}
	}
}

// sweep walks the download tree once, archiving every file whose mtime
// exceeds the retention age. Per-file errors never abort the walk.
func (s *Sweeper) sweep(now time.Time) {
	retention := time.Duration(s.cfg.RetentionSeconds) * time.Second

	err := filepath.WalkDir(s.downloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.WithError(err).WithField("path", path).Warn("Cleanup walk error")
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime()) < retention {
			return nil
		}

		s.archiveFile(path, d.Name())
		return nil
	})
	if err != nil {
		s.log.WithError(err).Error("Error during cleanup")
	}
}

// archiveFile moves one aged file into the archive, falling back to
// deletion when the move fails.
func (s *Sweeper) archiveFile(path, name string) {
	dest := filepath.Join(s.cfg.ArchiveDir, name)
	if err := os.Rename(path, dest); err == nil {
		s.log.WithField("file", path).Info("Moved file to archive")
		return
	}

	if err := os.Remove(path); err != nil {
		s.log.WithError(err).WithField("file", path).Error("Failed to remove old file")
		return
	}
	s.log.WithField("file", path).Info("Deleted old file")
}
