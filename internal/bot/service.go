// Package bot is the chat command surface: it consumes bot API updates,
// keeps the per-chat selection state and queues download batches on the
// orchestrator.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/episode"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/internal/task"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
)

const (
	maxSearchResults       = 8
	maxListCandidates      = 10
	maxMessageLength       = 4000
	truncatedMessageLength = 3800
)

const welcomeText = "Hello - send /search <anime name> to search for anime. " +
	"After selecting an anime send an episode list like `1-3` or use `/download <slug> <spec>`."

// Catalog provides the searchable title index.
type Catalog interface {
	Load(ctx context.Context) ([]models.Anime, error)
}

// EpisodeSource lists the episodes of a title.
type EpisodeSource interface {
	FetchEpisodes(ctx context.Context, slug string) ([]models.Episode, error)
}

// Ledger is the read side of the upload ledger used by chat commands.
type Ledger interface {
	LatestUploaded(ctx context.Context, title string, episode int) (*ledger.UploadedFile, error)
	ListForTitle(ctx context.Context, title string, limit int) ([]ledger.UploadedFile, error)
	ListDistinctTitles(ctx context.Context) ([]string, error)
}

// Runner executes a download batch.
type Runner interface {
	Run(ctx context.Context, batch task.Batch, status task.StatusFunc)
}

// session is one chat's in-progress selection.
type session struct {
	slug     string
	title    string
	episodes []models.Episode
}

// Service dispatches chat commands. Selection state lives here, keyed by
// chat, and never leaks into the download pipeline.
type Service struct {
	chat     chat.Client
	episodes EpisodeSource
	catalog  Catalog
	ledger   Ledger
	runner   Runner
	defaults *config.DownloaderConfig
	log      *logrus.Logger

	mu       sync.RWMutex
	results  map[int64][]models.Anime
	sessions map[int64]*session
}

// New assembles the command service.
func New(chatClient chat.Client, episodes EpisodeSource, cat Catalog, store Ledger, runner Runner, defaults *config.DownloaderConfig, log *logrus.Logger) *Service {
	return &Service{
		chat:     chatClient,
		episodes: episodes,
		catalog:  cat,
		ledger:   store,
		runner:   runner,
		defaults: defaults,
		log:      log,
		results:  make(map[int64][]models.Anime),
		sessions: make(map[int64]*session),
	}
}

// Run consumes updates until the channel closes or ctx is cancelled. Each
// update is handled on its own goroutine so a slow provider call never
// stalls the poll loop.
func (s *Service) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	s.log.Info("Command loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			msg := update.Message
			if msg == nil || msg.Text == "" {
				continue
			}

			userID := msg.Chat.ID
			if msg.From != nil {
				userID = msg.From.ID
			}

			go s.handle(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.Text))
		}
	}
}

func (s *Service) handle(ctx context.Context, chatID, userID int64, text string) {
	if text == "" {
		return
	}

	command, args := splitCommand(text)
	switch command {
	case "/ping":
		s.reply(ctx, chatID, "PONG")
	case "/start":
		s.reply(ctx, chatID, welcomeText)
	case "/search":
		if args != "" {
			s.handleSearch(ctx, chatID, args)
		}
	case "/select":
		s.handleSelect(ctx, chatID, args)
	case "/download":
		s.handleDownload(ctx, chatID, userID, args)
	case "/get":
		s.handleGet(ctx, chatID, args)
	case "/list":
		if args != "" {
			s.handleList(ctx, chatID, args)
		}
	default:
		// A bare episode spec continues the selection flow of this chat.
		if episode.ValidSpec(text) {
			s.handleSpecReply(ctx, chatID, userID, text)
		}
	}
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	command, args, _ := strings.Cut(text, " ")
	return command, strings.TrimSpace(args)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if _, err := s.chat.SendMessage(ctx, chatID, text); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send reply")
	}
}

func (s *Service) edit(ctx context.Context, chatID int64, messageID int, text string) {
	if err := s.chat.EditMessage(ctx, chatID, messageID, text); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("Failed to edit message")
	}
}

func (s *Service) rememberResults(chatID int64, results []models.Anime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[chatID] = results
}

func (s *Service) lastResults(chatID int64) []models.Anime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[chatID]
}

func (s *Service) storeSession(chatID int64, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

func (s *Service) session(chatID int64) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[chatID]
}
