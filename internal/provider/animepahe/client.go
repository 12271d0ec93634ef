// Package animepahe implements the provider contract against the animepahe
// website and its JSON API.
package animepahe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

// manifestPattern finds the first HLS manifest URL embedded in a stream page.
var manifestPattern = regexp.MustCompile(`https?://[^'"\s]+\.m3u8[^'"\s]*`)

// Client talks to the animepahe API and page endpoints.
type Client struct {
	cfg        *config.ProviderConfig
	catalogCfg *config.CatalogConfig
	http       *http.Client
	log        *logrus.Logger
}

// New creates a provider client using the configured base URL and user agent.
func New(cfg *config.ProviderConfig, catalogCfg *config.CatalogConfig, log *logrus.Logger) *Client {
	return &Client{
		cfg:        cfg,
		catalogCfg: catalogCfg,
		http:       &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

type searchResponse struct {
	Data []struct {
		Session string `json:"session"`
		Title   string `json:"title"`
	} `json:"data"`
}

type releaseResponse struct {
	LastPage int              `json:"last_page"`
	Data     []models.Episode `json:"data"`
}

// Search queries the provider search API for titles matching the query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Anime, error) {
	endpoint := fmt.Sprintf("%s/api?m=search&q=%s", c.cfg.BaseURL, url.QueryEscape(query))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	var res searchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	animes := make([]models.Anime, 0, len(res.Data))
	for _, d := range res.Data {
		animes = append(animes, models.Anime{Slug: d.Session, Title: d.Title})
	}

	return animes, nil
}

// FetchEpisodes lists every episode of the given title, following the
// release API's pagination.
func (c *Client) FetchEpisodes(ctx context.Context, slug string) ([]models.Episode, error) {
	var episodes []models.Episode

	page := 1
	for {
		endpoint := fmt.Sprintf("%s/api?m=release&id=%s&sort=episode_asc&page=%d", c.cfg.BaseURL, url.QueryEscape(slug), page)

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("episode listing failed: %w", err)
		}

		var res releaseResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return nil, fmt.Errorf("failed to decode episode listing: %w", err)
		}

		episodes = append(episodes, res.Data...)

		if page >= res.LastPage {
			break
		}
		page++
	}

	c.log.WithFields(logrus.Fields{
		"slug":     slug,
		"episodes": len(episodes),
	}).Debug("Fetched episode listing")

	return episodes, nil
}

// PlaybackPage fetches the playback page HTML for one episode.
func (c *Client) PlaybackPage(ctx context.Context, slug, episodeSession string) (string, error) {
	endpoint := fmt.Sprintf("%s/play/%s/%s", c.cfg.BaseURL, slug, episodeSession)

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to fetch playback page: %w", err)
	}

	return string(body), nil
}

// PlaylistURL fetches a stream page and extracts the HLS manifest URL from it.
func (c *Client) PlaylistURL(ctx context.Context, streamPageURL string) (string, error) {
	body, err := c.get(ctx, streamPageURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch stream page: %w", err)
	}

	match := manifestPattern.FindString(string(body))
	if match == "" {
		return "", fmt.Errorf("no playlist URL found in stream page")
	}

	return match, nil
}

// get performs an HTTP GET with the configured user agent, returning the body.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}
