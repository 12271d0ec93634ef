package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

// SnapshotSeparator splits a snapshot line into slug and title.
const SnapshotSeparator = "::::"

// maxSnapshotAge is how old the snapshot may grow before a refresh attempt.
const maxSnapshotAge = 24 * time.Hour

// ErrEmptySnapshot is returned when the snapshot file exists but holds no records.
var ErrEmptySnapshot = errors.New("catalog snapshot is empty")

// Refresher rebuilds the on-disk catalog snapshot from the provider.
type Refresher interface {
	RefreshCatalogSnapshot(ctx context.Context) error
}

// Cache reads the catalog snapshot, refreshing it through the provider when
// it is missing or stale. A nil refresher makes the cache read-only.
type Cache struct {
	path      string
	refresher Refresher
	log       *logrus.Logger
}

// NewCache creates a snapshot cache over the configured file.
func NewCache(cfg *config.CatalogConfig, refresher Refresher, log *logrus.Logger) *Cache {
	return &Cache{
		path:      cfg.SnapshotFile,
		refresher: refresher,
		log:       log,
	}
}

// Load returns all catalog entries, refreshing the snapshot first when it is
// missing or older than maxSnapshotAge. A snapshot that is still missing
// after the refresh attempt degrades to an empty catalog; a snapshot that
// exists but holds no records is an error.
func (c *Cache) Load(ctx context.Context) ([]models.Anime, error) {
	if c.refresher != nil && c.stale() {
		c.log.Info("Catalog snapshot missing or stale, refreshing")
		if err := c.refresher.RefreshCatalogSnapshot(ctx); err != nil {
			c.log.WithError(err).Warn("Failed to refresh catalog snapshot")
		}
	}

	entries, err := c.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.log.Warn("Catalog snapshot not found, returning empty catalog")
			return []models.Anime{}, nil
		}
		return nil, err
	}

	return entries, nil
}

// stale reports whether the snapshot is absent or past its freshness window.
func (c *Cache) stale() bool {
	info, err := os.Stat(c.path)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > maxSnapshotAge
}

func (c *Cache) read() ([]models.Anime, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []models.Anime
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		slug, title, ok := strings.Cut(line, SnapshotSeparator)
		if !ok {
			return nil, fmt.Errorf("malformed snapshot line %q", line)
		}
		entries = append(entries, models.Anime{Slug: slug, Title: title})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrEmptySnapshot
	}

	return entries, nil
}
