// Package media shells out to ffprobe and ffmpeg for video metadata and
// thumbnail frames.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FFmpeg probes and extracts frames using the ffmpeg tools on PATH.
type FFmpeg struct {
	log *logrus.Logger
}

// New returns a helper bound to the given logger.
func New(log *logrus.Logger) *FFmpeg {
	return &FFmpeg{log: log}
}

// ProbeDuration returns the video duration in seconds. Any probing failure
// yields zero, which callers treat as "duration unknown".
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		f.log.WithError(err).WithField("file", path).Debug("ffprobe failed")
		return 0
	}

	return parseDuration(string(out))
}

// parseDuration reads ffprobe's bare-seconds output. Garbage or negative
// values collapse to zero.
func parseDuration(out string) float64 {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// ExtractFrame grabs a single frame at the given offset and writes it as a
// jpg into dir, returning the written path.
func (f *FFmpeg) ExtractFrame(ctx context.Context, videoPath, dir string, offsetSeconds float64) (string, error) {
	outPath := filepath.Join(dir, fmt.Sprintf("%d.jpg", time.Now().UnixNano()))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(offsetSeconds, 'f', 2, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-y", outPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, bytes.TrimSpace(out))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("ffmpeg produced no thumbnail: %w", err)
	}

	return outPath, nil
}
