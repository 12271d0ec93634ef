// Package downloader turns one episode into a single local media file,
// driving the provider through stream resolution, segment download and
// muxing.
package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/provider"
	"github.com/mohdsabahat/anime-bot/internal/stream"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

// Failure reasons reported to the user, one per pipeline stage.
const (
	ReasonNoStream       = "No stream URL"
	ReasonNoPlaylist     = "No playlist URL"
	ReasonFetchPlaylist  = "Failed to fetch playlist"
	ReasonFetchSegments  = "Failed to download segments"
	ReasonCompileFailure = "Failed to compile video"
)

// Result is the outcome of one episode download. Quality and Audio reflect
// the variant actually selected, which may differ from the request.
type Result struct {
	Episode   int
	Quality   int
	Audio     string
	Filepath  string
	Succeeded bool
	Reason    string
}

// Engine downloads episodes through the provider into the configured
// download directory, using a private per-episode working area that is
// removed on every exit path.
type Engine struct {
	cfg      *config.DownloaderConfig
	provider provider.Client
	log      *logrus.Logger
}

// New creates a download engine over the given provider.
func New(cfg *config.DownloaderConfig, p provider.Client, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		provider: p,
		log:      log,
	}
}

// DownloadEpisode runs the full pipeline for one episode. Failures are
// captured in the Result, never returned as errors, so a batch can keep
// going after a bad episode.
func (e *Engine) DownloadEpisode(ctx context.Context, title, slug string, ep models.Episode, quality int, audio string) Result {
	res := Result{Episode: ep.Number}

	page, err := e.provider.PlaybackPage(ctx, slug, ep.Session)
	if err != nil {
		e.log.WithError(err).WithField("episode", ep.Number).Error("Failed to fetch playback page")
		return failed(res, ReasonNoStream)
	}

	variants, err := stream.ParseVariants(page)
	if err != nil || len(variants) == 0 {
		e.log.WithField("episode", ep.Number).Warn("No streams found on the playback page")
		return failed(res, ReasonNoStream)
	}

	selected := stream.Choose(variants, quality, audio, e.log)
	if selected == nil {
		return failed(res, ReasonNoStream)
	}
	res.Quality = selected.Quality
	res.Audio = selected.Audio

	playlistURL, err := e.provider.PlaylistURL(ctx, selected.URL)
	if err != nil {
		e.log.WithError(err).WithField("episode", ep.Number).Error("Failed to resolve playlist URL")
		return failed(res, ReasonNoPlaylist)
	}

	workDir, err := os.MkdirTemp(e.cfg.TempDir, fmt.Sprintf("ep_%d_", ep.Number))
	if err != nil {
		e.log.WithError(err).Error("Failed to create working directory")
		return failed(res, err.Error())
	}
	defer e.removeWorkDir(workDir)

	e.log.WithFields(logrus.Fields{
		"episode":  ep.Number,
		"quality":  selected.Quality,
		"audio":    selected.Audio,
		"work_dir": workDir,
	}).Info("Downloading episode")

	playlistPath, err := e.provider.FetchPlaylist(ctx, playlistURL, workDir)
	if err != nil {
		e.log.WithError(err).WithField("episode", ep.Number).Error("Failed to fetch playlist")
		return failed(res, ReasonFetchPlaylist)
	}

	if err := e.provider.FetchSegments(ctx, playlistPath, e.cfg.SegmentWorkers); err != nil {
		e.log.WithError(err).WithField("episode", ep.Number).Error("Failed to download segments")
		return failed(res, ReasonFetchSegments)
	}

	if err := os.MkdirAll(e.cfg.DownloadDir, 0o755); err != nil {
		e.log.WithError(err).Error("Failed to create download directory")
		return failed(res, err.Error())
	}
	outputPath := filepath.Join(e.cfg.DownloadDir, OutputFileName(title, ep.Number))

	if err := e.provider.Mux(ctx, workDir, outputPath); err != nil {
		// Some hosts serve a finished file instead of raw segments; salvage
		// it before giving up.
		e.log.WithError(err).WithField("episode", ep.Number).Warn("Muxing failed, checking work dir for a finished file")
		if !e.salvageFinishedFile(workDir, outputPath) {
			return failed(res, ReasonCompileFailure)
		}
	}

	res.Filepath = outputPath
	res.Succeeded = true
	return res
}

// OutputFileName names the muxed file for an episode. Slashes in the title
// are flattened so the path stays single-segment.
func OutputFileName(title string, episode int) string {
	return fmt.Sprintf("%s_ep%d.mp4", strings.ReplaceAll(title, "/", "_"), episode)
}

// salvageFinishedFile relocates an already-muxed media file from the work
// dir to outputPath, reporting whether one was found.
func (e *Engine) salvageFinishedFile(workDir, outputPath string) bool {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".mp4") && !strings.HasSuffix(name, ".mkv") {
			continue
		}

		if err := moveFile(filepath.Join(workDir, name), outputPath); err != nil {
			e.log.WithError(err).WithField("file", name).Error("Failed to relocate finished file")
			return false
		}

		e.log.WithField("file", name).Info("Recovered finished file from work dir")
		return true
	}

	return false
}

// removeWorkDir drops the episode's working area; removal is best effort
// and safe to repeat.
func (e *Engine) removeWorkDir(workDir string) {
	if err := os.RemoveAll(workDir); err != nil {
		e.log.WithError(err).WithField("work_dir", workDir).Warn("Failed to remove working directory")
	}
}

// moveFile renames src to dst, copying across filesystems when the rename
// fails (the temp area and download dir may live on different mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}

func failed(res Result, reason string) Result {
	res.Succeeded = false
	res.Reason = reason
	return res
}
