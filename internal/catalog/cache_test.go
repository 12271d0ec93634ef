package catalog

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	called  bool
	err     error
	content string
	path    string
}

func (f *fakeRefresher) RefreshCatalogSnapshot(ctx context.Context) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	if f.content != "" {
		return os.WriteFile(f.path, []byte(f.content), 0o644)
	}
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestCache(t *testing.T, refresher Refresher) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anime_cache.txt")
	cfg := &config.CatalogConfig{SnapshotFile: path}
	return NewCache(cfg, refresher, testLogger()), path
}

func TestLoadFreshSnapshot(t *testing.T) {
	refresher := &fakeRefresher{}
	cache, path := newTestCache(t, refresher)

	require.NoError(t, os.WriteFile(path, []byte("slug-a::::Title A\nslug-b::::Title B\n"), 0o644))

	entries, err := cache.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "slug-a", entries[0].Slug)
	assert.Equal(t, "Title A", entries[0].Title)
	assert.False(t, refresher.called, "fresh snapshot must not trigger a refresh")
}

func TestLoadStaleSnapshotRefreshes(t *testing.T) {
	refresher := &fakeRefresher{content: "slug-new::::New Title\n"}
	cache, path := newTestCache(t, refresher)
	refresher.path = path

	require.NoError(t, os.WriteFile(path, []byte("slug-old::::Old Title\n"), 0o644))
	old := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	entries, err := cache.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, refresher.called)
	require.Len(t, entries, 1)
	assert.Equal(t, "slug-new", entries[0].Slug)
}

func TestLoadMissingAfterRefreshIsEmpty(t *testing.T) {
	refresher := &fakeRefresher{}
	cache, _ := newTestCache(t, refresher)

	entries, err := cache.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, refresher.called)
	assert.Empty(t, entries)
}

func TestLoadEmptySnapshotIsError(t *testing.T) {
	cache, path := newTestCache(t, nil)
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o644))

	_, err := cache.Load(context.Background())

	require.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestLoadMalformedLineIsError(t *testing.T) {
	cache, path := newTestCache(t, nil)
	require.NoError(t, os.WriteFile(path, []byte("slug-a::::Title A\nnot a record\n"), 0o644))

	_, err := cache.Load(context.Background())

	require.Error(t, err)
}

func TestLoadRefreshFailureStillReadsExisting(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("provider down")}
	cache, path := newTestCache(t, refresher)

	require.NoError(t, os.WriteFile(path, []byte("slug-a::::Title A\n"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	entries, err := cache.Load(context.Background())
	require.NoError(t, err)

	assert.True(t, refresher.called)
	require.Len(t, entries, 1)
	assert.Equal(t, "slug-a", entries[0].Slug)
}

func TestLoadNilRefresherReadsOnly(t *testing.T) {
	cache, path := newTestCache(t, nil)
	require.NoError(t, os.WriteFile(path, []byte("slug-a::::Title A\n"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	entries, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
