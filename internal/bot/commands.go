package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mohdsabahat/anime-bot/internal/catalog"
	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/episode"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/internal/task"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

func (s *Service) handleSearch(ctx context.Context, chatID int64, query string) {
	notice, err := s.chat.SendMessage(ctx, chatID, fmt.Sprintf("Searching for `%s` ...", query))
	if err != nil {
		s.log.WithError(err).Error("Failed to send search notice")
		return
	}

	entries, err := s.catalog.Load(ctx)
	if err != nil {
		s.log.WithError(err).Error("Search failed")
		s.edit(ctx, chatID, notice.MessageID, fmt.Sprintf("Search failed: %v", err))
		return
	}

	top := catalog.Rank(entries, query, maxSearchResults)
	if len(top) == 0 {
		s.edit(ctx, chatID, notice.MessageID, fmt.Sprintf("No results for `%s`", query))
		return
	}

	s.rememberResults(chatID, top)

	var b strings.Builder
	b.WriteString("Select an anime with /select <n>:\n")
	for i, entry := range top {
		fmt.Fprintf(&b, "%d. %s\n", i+1, entry.Title)
	}
	s.edit(ctx, chatID, notice.MessageID, strings.TrimRight(b.String(), "\n"))
}

func (s *Service) handleSelect(ctx context.Context, chatID int64, args string) {
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		s.reply(ctx, chatID, "Usage: /select <result number> after a /search.")
		return
	}

	results := s.lastResults(chatID)
	if len(results) == 0 {
		s.reply(ctx, chatID, "No search results to select from. Use /search first.")
		return
	}
	if n > len(results) {
		s.reply(ctx, chatID, fmt.Sprintf("Pick a number between 1 and %d.", len(results)))
		return
	}
	picked := results[n-1]

	notice, err := s.chat.SendMessage(ctx, chatID, fmt.Sprintf("Selected %s - fetching episode list ...", picked.Title))
	if err != nil {
		s.log.WithError(err).Error("Failed to send selection notice")
		return
	}

	eps, err := s.episodes.FetchEpisodes(ctx, picked.Slug)
	if err != nil {
		s.log.WithError(err).WithField("slug", picked.Slug).Error("Failed to fetch episodes")
		s.edit(ctx, chatID, notice.MessageID, fmt.Sprintf("Failed to fetch episodes: %v", err))
		return
	}
	if len(eps) == 0 {
		s.edit(ctx, chatID, notice.MessageID, "No episodes found.")
		return
	}

	s.storeSession(chatID, &session{
		slug:     picked.Slug,
		title:    picked.Title,
		episodes: eps,
	})

	s.edit(ctx, chatID, notice.MessageID, fmt.Sprintf(
		"Fetched %d episodes for %s. Send an episode spec like `1-3,5` to download, or use `/download %s 1-3` directly.",
		len(eps), picked.Title, picked.Slug))
}

// handleSpecReply treats a bare spec message as a download request for the
// chat's current selection. Chats without a selection are left alone.
func (s *Service) handleSpecReply(ctx context.Context, chatID, userID int64, spec string) {
	sess := s.session(chatID)
	if sess == nil {
		return
	}

	wanted, err := episode.Expand(spec)
	if err != nil {
		s.reply(ctx, chatID, "Invalid episode spec. Examples: `1`, `1-3`, `1,3,5-7`.")
		return
	}

	chosen := episode.Pick(sess.episodes, wanted)
	if len(chosen) == 0 {
		s.reply(ctx, chatID, "No matching episodes found in this anime for that spec.")
		return
	}

	status, err := s.chat.SendMessage(ctx, chatID, fmt.Sprintf("Queued download for %s episodes %s", sess.title, spec))
	if err != nil {
		s.log.WithError(err).Error("Failed to send status message")
		return
	}

	s.queueBatch(ctx, status, chatID, userID, sess.title, sess.slug, chosen, s.defaults.Quality, s.defaults.Audio)
}

func (s *Service) handleDownload(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.reply(ctx, chatID, "Usage: /download <slug> <spec> [quality] [audio]")
		return
	}
	slug, spec := fields[0], fields[1]

	if !episode.ValidSpec(spec) {
		s.reply(ctx, chatID, "Invalid episode spec format. Use examples like `1`, `1-3`, `1,3,5-7`.")
		return
	}

	quality := s.defaults.Quality
	if len(fields) >= 3 {
		q, err := strconv.Atoi(fields[2])
		if err != nil {
			s.reply(ctx, chatID, fmt.Sprintf("Invalid quality %q, expected a number like 720.", fields[2]))
			return
		}
		quality = q
	}
	audio := s.defaults.Audio
	if len(fields) >= 4 {
		audio = fields[3]
	}

	status, err := s.chat.SendMessage(ctx, chatID, fmt.Sprintf("Checking if entered episode[s] are valid for %s episodes: %s", slug, spec))
	if err != nil {
		s.log.WithError(err).Error("Failed to send status message")
		return
	}

	eps, err := s.episodes.FetchEpisodes(ctx, slug)
	if err != nil || len(eps) == 0 {
		if err != nil {
			s.log.WithError(err).WithField("slug", slug).Error("Failed to fetch episodes")
		}
		s.edit(ctx, chatID, status.MessageID,
			"Could not fetch episodes using the provided slug. "+
				"Please use `/search <anime>` then select the anime and send episode spec, or give the correct slug.")
		return
	}

	wanted, err := episode.Expand(spec)
	if err != nil {
		s.reply(ctx, chatID, "Invalid episode spec format. Use examples like `1`, `1-3`, `1,3,5-7`.")
		return
	}

	chosen := episode.Pick(eps, wanted)
	if len(chosen) == 0 {
		s.edit(ctx, chatID, status.MessageID, "No matching episodes found for the spec.")
		return
	}

	title := s.titleForSlug(ctx, slug)
	s.edit(ctx, chatID, status.MessageID, fmt.Sprintf("Queued download for %s episodes %s", slug, spec))
	s.queueBatch(ctx, status, chatID, userID, title, slug, chosen, quality, audio)
}

func (s *Service) handleGet(ctx context.Context, chatID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.reply(ctx, chatID, "Usage: /get <anime title> <episode>")
		return
	}

	ep, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		s.reply(ctx, chatID, "Usage: /get <anime title> <episode>")
		return
	}
	title := strings.Join(fields[:len(fields)-1], " ")

	row, err := s.ledger.LatestUploaded(ctx, title, ep)
	if err != nil {
		s.log.WithError(err).Error("Ledger lookup failed")
		s.reply(ctx, chatID, fmt.Sprintf("Could not send cached file: %v", err))
		return
	}
	if row == nil {
		s.reply(ctx, chatID, fmt.Sprintf("No cached file for %s ep %d. Use /search and download.", title, ep))
		return
	}

	if _, err := s.chat.CopyMessage(ctx, row.VaultChatID, row.VaultMessageID, chatID); err != nil {
		s.log.WithError(err).Error("Failed to copy cached file")
		s.reply(ctx, chatID, fmt.Sprintf("Could not send cached file: %v", err))
		return
	}
	s.reply(ctx, chatID, "Sent from cache.")
}

func (s *Service) handleList(ctx context.Context, chatID int64, query string) {
	rows, err := s.ledger.ListForTitle(ctx, query, ledger.ExtendedQueryLimit)
	if err != nil {
		s.log.WithError(err).Error("Ledger list failed")
		s.reply(ctx, chatID, fmt.Sprintf("Could not list uploads: %v", err))
		return
	}

	if len(rows) > 0 {
		s.reply(ctx, chatID, fmt.Sprintf("Uploads for exact title: %s\n\n%s", query, formatUploadLines(rows)))
		return
	}

	titles, err := s.ledger.ListDistinctTitles(ctx)
	if err != nil {
		s.log.WithError(err).Error("Ledger titles lookup failed")
		s.reply(ctx, chatID, fmt.Sprintf("Could not list uploads: %v", err))
		return
	}

	candidates := rankTitles(titles, query, maxListCandidates)
	if len(candidates) == 0 {
		s.reply(ctx, chatID, fmt.Sprintf("No cached uploads matching `%s`. Try a different query.", query))
		return
	}

	var lines []string
	for _, title := range candidates {
		count, err := s.countUploadedEpisodes(ctx, title)
		if err != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s - %d uploaded", title, count))
	}

	msg := "Search results:\n\n" + strings.Join(lines, "\n")
	if len(msg) > maxMessageLength {
		msg = msg[:truncatedMessageLength] + "\n...truncated..."
	}
	s.reply(ctx, chatID, msg)
}

// queueBatch starts the batch on its own goroutine; every status line it
// produces edits the one queue message.
func (s *Service) queueBatch(ctx context.Context, status *chat.MessageHandle, chatID, userID int64, title, slug string, eps []models.Episode, quality int, audio string) {
	batch := task.NewBatch(title, slug, eps, chatID, userID, quality, audio)

	update := func(text string) {
		if err := s.chat.EditMessage(ctx, chatID, status.MessageID, text); err != nil {
			s.log.WithError(err).Debug("Status edit failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"task_id":  batch.ID,
		"title":    title,
		"episodes": batch.EpisodeNumbers(),
	}).Info("Queueing download batch")

	go s.runner.Run(ctx, batch, update)
}

// titleForSlug recovers the display title for a slug from the catalog,
// degrading to the slug itself when the catalog cannot help.
func (s *Service) titleForSlug(ctx context.Context, slug string) string {
	entries, err := s.catalog.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Failed to load catalog for slug lookup")
		return slug
	}
	for _, entry := range entries {
		if entry.Slug == slug {
			if entry.Title != "" {
				return entry.Title
			}
			break
		}
	}
	return slug
}

func (s *Service) countUploadedEpisodes(ctx context.Context, title string) (int, error) {
	rows, err := s.ledger.ListForTitle(ctx, title, ledger.MaxQueryLimit)
	if err != nil {
		return 0, err
	}
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		seen[r.Episode] = struct{}{}
	}
	return len(seen), nil
}

func formatUploadLines(rows []ledger.UploadedFile) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("Ep %d - %s (%s)", r.Episode, r.Filename, r.CreatedAt.Format("2006-01-02 15:04")))
	}
	msg := strings.Join(lines, "\n")
	if len(msg) > maxMessageLength {
		msg = msg[:truncatedMessageLength] + "\n...truncated..."
	}
	return msg
}

// rankTitles fuzzy-scores plain title strings, best first.
func rankTitles(titles []string, query string, limit int) []string {
	type scored struct {
		score int
		title string
	}
	var candidates []scored
	for _, title := range titles {
		if sc := catalog.Score(title, query); sc > 0 {
			candidates = append(candidates, scored{sc, title})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ranked := make([]string, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.title
	}
	return ranked
}
