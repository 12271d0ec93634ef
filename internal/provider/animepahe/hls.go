package animepahe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const playlistFileName = "playlist.m3u8"

// segmentJob represents a single segment download task
type segmentJob struct {
	index    int
	url      string
	fileName string
}

// FetchPlaylist downloads the HLS manifest into workDir and returns its path.
func (c *Client) FetchPlaylist(ctx context.Context, manifestURL, workDir string) (string, error) {
	path := filepath.Join(workDir, playlistFileName)
	if err := c.downloadFile(ctx, manifestURL, path); err != nil {
		return "", fmt.Errorf("failed to download playlist: %w", err)
	}
	return path, nil
}

// FetchSegments downloads every media segment named by the local manifest
// into the manifest's directory. File names carry the manifest position so
// muxing preserves order.
func (c *Client) FetchSegments(ctx context.Context, playlistPath string, workers int) error {
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return fmt.Errorf("error reading playlist: %w", err)
	}

	urls := segmentURLs(string(data))
	if len(urls) == 0 {
		return fmt.Errorf("no segments found in playlist")
	}

	if workers <= 0 {
		workers = 10
	}
	if len(urls) < workers {
		workers = len(urls)
	}

	dir := filepath.Dir(playlistPath)

	c.log.WithFields(logrus.Fields{
		"segments": len(urls),
		"workers":  workers,
	}).Debug("Starting segment download")

	jobs := make(chan segmentJob, len(urls))

	var wg sync.WaitGroup
	// Protects the shared first-error slot
	var mu sync.Mutex
	var downloadErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobs {
				// Skip remaining jobs once an error is recorded
				mu.Lock()
				failed := downloadErr != nil
				mu.Unlock()
				if failed {
					continue
				}

				if ctx.Err() != nil {
					mu.Lock()
					if downloadErr == nil {
						downloadErr = ctx.Err()
					}
					mu.Unlock()
					return
				}

				if err := c.downloadFile(ctx, job.url, job.fileName); err != nil {
					mu.Lock()
					if downloadErr == nil {
						downloadErr = fmt.Errorf("error downloading segment %d: %w", job.index, err)
					}
					mu.Unlock()
					continue
				}

				c.log.WithFields(logrus.Fields{
					"worker_id": workerID,
					"segment":   job.index,
				}).Debug("Worker completed segment")
			}
		}(w)
	}

	for i, segmentURL := range urls {
		jobs <- segmentJob{
			index:    i,
			url:      segmentURL,
			fileName: filepath.Join(dir, fmt.Sprintf("segment-%05d.ts", i)),
		}
	}
	close(jobs)

	wg.Wait()

	return downloadErr
}

// Mux concatenates the ordered segment files in workDir into outputPath
// using the ffmpeg concat demuxer, copying both streams.
func (c *Client) Mux(ctx context.Context, workDir, outputPath string) error {
	segments, err := filepath.Glob(filepath.Join(workDir, "segment-*.ts"))
	if err != nil {
		return fmt.Errorf("error listing segments: %w", err)
	}
	if len(segments) == 0 {
		return fmt.Errorf("no segments to mux in %s", workDir)
	}
	sort.Strings(segments)

	listFileName := filepath.Join(workDir, "segments.txt")
	listFile, err := os.Create(listFileName)
	if err != nil {
		return fmt.Errorf("error creating filelist: %w", err)
	}
	defer listFile.Close()

	for _, segment := range segments {
		absPath, err := filepath.Abs(segment)
		if err != nil {
			return fmt.Errorf("error getting absolute path: %w", err)
		}
		// Escape single quotes for the concat demuxer list format
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := listFile.WriteString(fmt.Sprintf("file '%s'\n", escapedPath)); err != nil {
			return fmt.Errorf("error writing to filelist: %w", err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"output":   outputPath,
		"segments": len(segments),
	}).Info("Starting conversion to MP4")

	cmd := exec.CommandContext(ctx, "ffmpeg", "-f", "concat", "-safe", "0", "-i", listFileName, "-c:v", "copy", "-c:a", "copy", "-y", outputPath)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting ffmpeg: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg error: %w", err)
	}

	c.log.WithField("output", outputPath).Info("Conversion completed successfully")

	return nil
}

// segmentURLs returns the non-comment lines of an HLS manifest.
func segmentURLs(manifest string) []string {
	var urls []string
	for _, line := range strings.Split(manifest, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls
}

// downloadFile fetches a URL into a file, retrying transient failures with
// a short backoff.
func (c *Client) downloadFile(ctx context.Context, fileURL, fileName string) error {
	maxRetries := 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			c.log.WithFields(logrus.Fields{
				"url":      fileURL,
				"fileName": fileName,
				"attempt":  attempt + 1,
				"error":    lastErr,
			}).Debug("Retrying download")
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("error downloading file (attempt %d): %w", attempt+1, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d (attempt %d)", resp.StatusCode, attempt+1)
			continue
		}

		out, err := os.Create(fileName)
		if err != nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("error creating file (attempt %d): %w", attempt+1, err)
			continue
		}

		_, err = io.Copy(out, resp.Body)
		resp.Body.Close()
		out.Close()

		if err != nil {
			lastErr = fmt.Errorf("error writing to file (attempt %d): %w", attempt+1, err)
			continue
		}

		return nil
	}

	return lastErr
}
