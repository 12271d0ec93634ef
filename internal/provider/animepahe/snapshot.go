package animepahe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/renameio/v2"
	"github.com/mohdsabahat/anime-bot/internal/catalog"
)

// RefreshCatalogSnapshot scrapes the provider's full title index and
// rewrites the snapshot file. The write is atomic so concurrent refreshes
// leave a consistent file, last writer winning.
func (c *Client) RefreshCatalogSnapshot(ctx context.Context) error {
	body, err := c.get(ctx, c.cfg.BaseURL+"/anime")
	if err != nil {
		return fmt.Errorf("failed to fetch catalog index: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse catalog index: %w", err)
	}

	var buf bytes.Buffer
	count := 0
	doc.Find(`a[href^="/anime/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		slug := strings.TrimPrefix(href, "/anime/")
		title := strings.TrimSpace(sel.Text())
		if slug == "" || title == "" {
			return
		}
		fmt.Fprintf(&buf, "%s%s%s\n", slug, catalog.SnapshotSeparator, title)
		count++
	})

	if count == 0 {
		return fmt.Errorf("catalog index yielded no titles")
	}

	if err := os.MkdirAll(filepath.Dir(c.catalogCfg.SnapshotFile), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err := renameio.WriteFile(c.catalogCfg.SnapshotFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	c.log.WithField("titles", count).Info("Catalog snapshot refreshed")

	return nil
}
