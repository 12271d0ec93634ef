// Package provider defines the contract between the download pipeline and a
// remote episodic-video catalog.
package provider

import (
	"context"

	"github.com/mohdsabahat/anime-bot/pkg/models"
)

// Client is the remote catalog the pipeline searches and downloads from.
// Implementations own all transport concerns; callers never see HTTP.
type Client interface {
	// Search queries the provider for titles matching the query.
	Search(ctx context.Context, query string) ([]models.Anime, error)

	// FetchEpisodes lists every episode of the given title, ascending.
	FetchEpisodes(ctx context.Context, slug string) ([]models.Episode, error)

	// PlaybackPage fetches the playback page HTML for one episode.
	PlaybackPage(ctx context.Context, slug, episodeSession string) (string, error)

	// PlaylistURL resolves a stream page to its HLS manifest URL.
	PlaylistURL(ctx context.Context, streamPageURL string) (string, error)

	// FetchPlaylist downloads the manifest into workDir and returns its
	// local path.
	FetchPlaylist(ctx context.Context, manifestURL, workDir string) (string, error)

	// FetchSegments downloads every media segment named by the local
	// manifest into the manifest's directory, preserving order.
	FetchSegments(ctx context.Context, playlistPath string, workers int) error

	// Mux assembles the downloaded segments in workDir into outputPath.
	Mux(ctx context.Context, workDir, outputPath string) error

	// RefreshCatalogSnapshot rebuilds the on-disk catalog snapshot.
	RefreshCatalogSnapshot(ctx context.Context) error
}
