package bot

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mohdsabahat/anime-bot/internal/chat"
	"github.com/mohdsabahat/anime-bot/internal/common/config"
	"github.com/mohdsabahat/anime-bot/internal/ledger"
	"github.com/mohdsabahat/anime-bot/internal/task"
	"github.com/mohdsabahat/anime-bot/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChatID = int64(1001)

type sentMessage struct {
	chatID int64
	text   string
}

type editCall struct {
	chatID    int64
	messageID int
	text      string
}

type copyCall struct {
	fromChatID int64
	messageID  int
	toChatID   int64
}

type fakeChat struct {
	mu      sync.Mutex
	sendErr error
	copyErr error
	nextID  int
	sent    []sentMessage
	edits   []editCall
	copies  []copyCall
}

func (f *fakeChat) SendMessage(ctx context.Context, chatID int64, text string) (*chat.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID, text})
	return &chat.MessageHandle{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeChat) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{chatID, messageID, text})
	return nil
}

func (f *fakeChat) SendFile(ctx context.Context, chatID int64, path, caption, thumbPath string, duration int, progress chat.ProgressFunc) (*chat.MessageHandle, error) {
	return nil, errors.New("not used by the command surface")
}

func (f *fakeChat) CopyMessage(ctx context.Context, fromChatID int64, messageID int, toChatID int64) (*chat.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies = append(f.copies, copyCall{fromChatID, messageID, toChatID})
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	return &chat.MessageHandle{ChatID: toChatID, MessageID: 999}, nil
}

func (f *fakeChat) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.sent))
	for i, m := range f.sent {
		texts[i] = m.text
	}
	return texts
}

func (f *fakeChat) editTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.edits))
	for i, e := range f.edits {
		texts[i] = e.text
	}
	return texts
}

type fakeCatalog struct {
	entries []models.Anime
	err     error
}

func (f *fakeCatalog) Load(ctx context.Context) ([]models.Anime, error) {
	return f.entries, f.err
}

type fakeEpisodes struct {
	eps   map[string][]models.Episode
	err   error
	calls []string
}

func (f *fakeEpisodes) FetchEpisodes(ctx context.Context, slug string) ([]models.Episode, error) {
	f.calls = append(f.calls, slug)
	if f.err != nil {
		return nil, f.err
	}
	return f.eps[slug], nil
}

type fakeBotLedger struct {
	latest      *ledger.UploadedFile
	latestErr   error
	latestTitle string
	latestEp    int
	byTitle     map[string][]ledger.UploadedFile
	titles      []string
}

func (f *fakeBotLedger) LatestUploaded(ctx context.Context, title string, episode int) (*ledger.UploadedFile, error) {
	f.latestTitle, f.latestEp = title, episode
	return f.latest, f.latestErr
}

func (f *fakeBotLedger) ListForTitle(ctx context.Context, title string, limit int) ([]ledger.UploadedFile, error) {
	return f.byTitle[title], nil
}

func (f *fakeBotLedger) ListDistinctTitles(ctx context.Context) ([]string, error) {
	return f.titles, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	batches []task.Batch
	ran     chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, batch task.Batch, status task.StatusFunc) {
	f.mu.Lock()
	f.batches = append(f.batches, batch)
	f.mu.Unlock()
	if status != nil {
		status("Starting task: " + batch.Title)
	}
	f.ran <- struct{}{}
}

func (f *fakeRunner) lastBatch(t *testing.T) task.Batch {
	t.Helper()
	select {
	case <-f.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("batch was never queued")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.batches)
	return f.batches[len(f.batches)-1]
}

type botEnv struct {
	chat   *fakeChat
	eps    *fakeEpisodes
	cat    *fakeCatalog
	store  *fakeBotLedger
	runner *fakeRunner
	svc    *Service
}

func newBotEnv(t *testing.T) *botEnv {
	t.Helper()
	env := &botEnv{
		chat:   &fakeChat{},
		eps:    &fakeEpisodes{eps: map[string][]models.Episode{}},
		cat:    &fakeCatalog{},
		store:  &fakeBotLedger{byTitle: map[string][]ledger.UploadedFile{}},
		runner: &fakeRunner{ran: make(chan struct{}, 8)},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	env.svc = New(env.chat, env.eps, env.cat, env.store, env.runner,
		&config.DownloaderConfig{Quality: 360, Audio: "jpn"}, log)
	return env
}

func numberedEpisodes(numbers ...int) []models.Episode {
	eps := make([]models.Episode, len(numbers))
	for i, n := range numbers {
		eps[i] = models.Episode{Number: n, Session: "s"}
	}
	return eps
}

func TestPing(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/ping")

	require.Equal(t, []string{"PONG"}, env.chat.sentTexts())
}

func TestStartReturnsWelcome(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/start")

	require.Len(t, env.chat.sentTexts(), 1)
	assert.Contains(t, env.chat.sentTexts()[0], "/search <anime name>")
}

func TestSearchPresentsRankedResults(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{
		{Slug: "slug-naruto", Title: "Naruto"},
		{Slug: "slug-aot", Title: "Attack on Titan"},
	}

	env.svc.handle(context.Background(), testChatID, 777, "/search titan")

	require.Equal(t, []string{"Searching for `titan` ..."}, env.chat.sentTexts())
	edits := env.chat.editTexts()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0], "1. Attack on Titan")
	assert.NotContains(t, edits[0], "Naruto")
}

func TestSearchWithoutMatches(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-naruto", Title: "Naruto"}}

	env.svc.handle(context.Background(), testChatID, 777, "/search zzzz")

	edits := env.chat.editTexts()
	require.Len(t, edits, 1)
	assert.Equal(t, "No results for `zzzz`", edits[0])
}

func TestSearchCatalogFailure(t *testing.T) {
	env := newBotEnv(t)
	env.cat.err = errors.New("snapshot unreadable")

	env.svc.handle(context.Background(), testChatID, 777, "/search titan")

	edits := env.chat.editTexts()
	require.Len(t, edits, 1)
	assert.Equal(t, "Search failed: snapshot unreadable", edits[0])
}

func TestSelectWithoutSearch(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/select 1")

	require.Equal(t, []string{"No search results to select from. Use /search first."}, env.chat.sentTexts())
}

func TestSelectOutOfRange(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-aot", Title: "Attack on Titan"}}
	env.svc.handle(context.Background(), testChatID, 777, "/search titan")

	env.svc.handle(context.Background(), testChatID, 777, "/select 5")

	assert.Contains(t, env.chat.sentTexts(), "Pick a number between 1 and 1.")
}

func TestSelectFetchesEpisodesAndStoresSession(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-aot", Title: "Attack on Titan"}}
	env.eps.eps["slug-aot"] = numberedEpisodes(1, 2, 3)
	env.svc.handle(context.Background(), testChatID, 777, "/search titan")

	env.svc.handle(context.Background(), testChatID, 777, "/select 1")

	assert.Equal(t, []string{"slug-aot"}, env.eps.calls)
	edits := env.chat.editTexts()
	require.NotEmpty(t, edits)
	assert.Contains(t, edits[len(edits)-1], "Fetched 3 episodes for Attack on Titan")

	sess := env.svc.session(testChatID)
	require.NotNil(t, sess)
	assert.Equal(t, "slug-aot", sess.slug)
	assert.Equal(t, "Attack on Titan", sess.title)
	assert.Len(t, sess.episodes, 3)
}

func TestSelectEpisodeFetchFailure(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-aot", Title: "Attack on Titan"}}
	env.eps.err = errors.New("http 503")
	env.svc.handle(context.Background(), testChatID, 777, "/search titan")

	env.svc.handle(context.Background(), testChatID, 777, "/select 1")

	edits := env.chat.editTexts()
	assert.Contains(t, edits[len(edits)-1], "Failed to fetch episodes")
	assert.Nil(t, env.svc.session(testChatID))
}

func TestBareSpecQueuesBatchFromSession(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-aot", Title: "Attack on Titan"}}
	env.eps.eps["slug-aot"] = numberedEpisodes(1, 2, 3)
	env.svc.handle(context.Background(), testChatID, 777, "/search titan")
	env.svc.handle(context.Background(), testChatID, 777, "/select 1")

	env.svc.handle(context.Background(), testChatID, 777, "1-2")

	batch := env.runner.lastBatch(t)
	assert.Equal(t, "Attack on Titan", batch.Title)
	assert.Equal(t, "slug-aot", batch.Slug)
	assert.Equal(t, []int{1, 2}, batch.EpisodeNumbers())
	assert.Equal(t, testChatID, batch.RequesterChatID)
	assert.Equal(t, int64(777), batch.UploaderUserID)
	assert.Equal(t, 360, batch.Quality)
	assert.Equal(t, "jpn", batch.Audio)

	assert.Contains(t, env.chat.sentTexts(), "Queued download for Attack on Titan episodes 1-2")
	assert.Eventually(t, func() bool {
		for _, text := range env.chat.editTexts() {
			if text == "Starting task: Attack on Titan" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "status callback must edit the queue message")
}

func TestBareSpecWithoutSessionIsIgnored(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "1-3")

	assert.Empty(t, env.chat.sentTexts())
	assert.Empty(t, env.runner.batches)
}

func TestBareSpecWithNoMatchingEpisodes(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-aot", Title: "Attack on Titan"}}
	env.eps.eps["slug-aot"] = numberedEpisodes(1, 2, 3)
	env.svc.handle(context.Background(), testChatID, 777, "/search titan")
	env.svc.handle(context.Background(), testChatID, 777, "/select 1")

	env.svc.handle(context.Background(), testChatID, 777, "9")

	assert.Contains(t, env.chat.sentTexts(), "No matching episodes found in this anime for that spec.")
	assert.Empty(t, env.runner.batches)
}

func TestDownloadDirectQueuesBatch(t *testing.T) {
	env := newBotEnv(t)
	env.cat.entries = []models.Anime{{Slug: "slug-naruto", Title: "Naruto"}}
	env.eps.eps["slug-naruto"] = numberedEpisodes(1, 2, 3, 4, 5)

	env.svc.handle(context.Background(), testChatID, 777, "/download slug-naruto 2-3 720 eng")

	batch := env.runner.lastBatch(t)
	assert.Equal(t, "Naruto", batch.Title, "title recovered from the catalog")
	assert.Equal(t, "slug-naruto", batch.Slug)
	assert.Equal(t, []int{2, 3}, batch.EpisodeNumbers())
	assert.Equal(t, 720, batch.Quality)
	assert.Equal(t, "eng", batch.Audio)

	assert.Contains(t, env.chat.sentTexts(), "Checking if entered episode[s] are valid for slug-naruto episodes: 2-3")
	assert.Contains(t, env.chat.editTexts(), "Queued download for slug-naruto episodes 2-3")
}

func TestDownloadUnknownSlugFallsBackToSlugTitle(t *testing.T) {
	env := newBotEnv(t)
	env.eps.eps["mystery"] = numberedEpisodes(1)

	env.svc.handle(context.Background(), testChatID, 777, "/download mystery 1")

	batch := env.runner.lastBatch(t)
	assert.Equal(t, "mystery", batch.Title)
}

func TestDownloadRejectsBadQualityBeforeProviderCall(t *testing.T) {
	env := newBotEnv(t)
	env.eps.eps["slug-naruto"] = numberedEpisodes(1)

	env.svc.handle(context.Background(), testChatID, 777, "/download slug-naruto 1 abc")

	require.Len(t, env.chat.sentTexts(), 1)
	assert.Contains(t, env.chat.sentTexts()[0], "Invalid quality")
	assert.Empty(t, env.eps.calls, "no provider call before input validation")
	assert.Empty(t, env.runner.batches)
}

func TestDownloadRejectsMalformedSpec(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/download slug-naruto 1-")

	require.Len(t, env.chat.sentTexts(), 1)
	assert.Contains(t, env.chat.sentTexts()[0], "Invalid episode spec format")
	assert.Empty(t, env.eps.calls)
}

func TestDownloadWithUnfetchableEpisodes(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/download nope 1-3")

	edits := env.chat.editTexts()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0], "Could not fetch episodes using the provided slug")
	assert.Empty(t, env.runner.batches)
}

func TestGetCopiesFromVault(t *testing.T) {
	env := newBotEnv(t)
	env.store.latest = &ledger.UploadedFile{
		AnimeTitle:     "Attack on Titan",
		Episode:        5,
		VaultChatID:    -100555,
		VaultMessageID: 42,
	}

	env.svc.handle(context.Background(), testChatID, 777, "/get Attack on Titan 5")

	assert.Equal(t, "Attack on Titan", env.store.latestTitle)
	assert.Equal(t, 5, env.store.latestEp)
	require.Len(t, env.chat.copies, 1)
	assert.Equal(t, copyCall{fromChatID: -100555, messageID: 42, toChatID: testChatID}, env.chat.copies[0])
	assert.Contains(t, env.chat.sentTexts(), "Sent from cache.")
}

func TestGetMiss(t *testing.T) {
	env := newBotEnv(t)

	env.svc.handle(context.Background(), testChatID, 777, "/get Naruto 3")

	assert.Contains(t, env.chat.sentTexts(), "No cached file for Naruto ep 3. Use /search and download.")
	assert.Empty(t, env.chat.copies)
}

func TestGetCopyFailure(t *testing.T) {
	env := newBotEnv(t)
	env.store.latest = &ledger.UploadedFile{VaultChatID: -100555, VaultMessageID: 42}
	env.chat.copyErr = errors.New("message deleted")

	env.svc.handle(context.Background(), testChatID, 777, "/get Naruto 3")

	assert.Contains(t, env.chat.sentTexts(), "Could not send cached file: message deleted")
}

func TestListExactTitle(t *testing.T) {
	env := newBotEnv(t)
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	env.store.byTitle["Naruto"] = []ledger.UploadedFile{
		{Episode: 1, Filename: "Naruto_ep1.mp4", CreatedAt: created},
		{Episode: 2, Filename: "Naruto_ep2.mp4", CreatedAt: created},
	}

	env.svc.handle(context.Background(), testChatID, 777, "/list Naruto")

	require.Len(t, env.chat.sentTexts(), 1)
	msg := env.chat.sentTexts()[0]
	assert.Contains(t, msg, "Uploads for exact title: Naruto")
	assert.Contains(t, msg, "Ep 1 - Naruto_ep1.mp4 (2026-03-14 09:30)")
	assert.Contains(t, msg, "Ep 2 - Naruto_ep2.mp4")
}

func TestListFuzzyFallback(t *testing.T) {
	env := newBotEnv(t)
	env.store.titles = []string{"Attack on Titan", "Naruto"}
	env.store.byTitle["Attack on Titan"] = []ledger.UploadedFile{
		{Episode: 1}, {Episode: 2}, {Episode: 2},
	}

	env.svc.handle(context.Background(), testChatID, 777, "/list titan")

	require.Len(t, env.chat.sentTexts(), 1)
	msg := env.chat.sentTexts()[0]
	assert.Contains(t, msg, "Search results:")
	assert.Contains(t, msg, "Attack on Titan - 2 uploaded")
	assert.NotContains(t, msg, "Naruto")
}

func TestListNothingMatches(t *testing.T) {
	env := newBotEnv(t)
	env.store.titles = []string{"Naruto"}

	env.svc.handle(context.Background(), testChatID, 777, "/list zzzz")

	require.Len(t, env.chat.sentTexts(), 1)
	assert.Contains(t, env.chat.sentTexts()[0], "No cached uploads matching `zzzz`")
}

func TestRunConsumesUpdatesUntilClosed(t *testing.T) {
	env := newBotEnv(t)

	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "/ping",
		Chat: &tgbotapi.Chat{ID: testChatID},
		From: &tgbotapi.User{ID: 777},
	}}
	close(updates)

	done := make(chan struct{})
	go func() {
		env.svc.Run(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the update channel closed")
	}

	assert.Eventually(t, func() bool {
		texts := env.chat.sentTexts()
		return len(texts) == 1 && texts[0] == "PONG"
	}, 2*time.Second, 10*time.Millisecond)
}
