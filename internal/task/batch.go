package task

import (
	"github.com/google/uuid"
	"github.com/mohdsabahat/anime-bot/pkg/models"
)

// Batch is one user-requested unit of work: a title plus the episodes to
// download and deliver. A batch is owned by a single Run call and discarded
// when it returns.
type Batch struct {
	ID              string
	Title           string
	Slug            string
	Episodes        []models.Episode
	RequesterChatID int64
	UploaderUserID  int64
	Quality         int
	Audio           string
}

// NewBatch builds a batch with a fresh task ID. Episodes are taken as given;
// callers resolve and order them before queueing.
func NewBatch(title, slug string, episodes []models.Episode, requesterChatID, uploaderUserID int64, quality int, audio string) Batch {
	return Batch{
		ID:              uuid.NewString(),
		Title:           title,
		Slug:            slug,
		Episodes:        episodes,
		RequesterChatID: requesterChatID,
		UploaderUserID:  uploaderUserID,
		Quality:         quality,
		Audio:           audio,
	}
}

// EpisodeNumbers lists the episode numbers of the batch in order.
func (b Batch) EpisodeNumbers() []int {
	numbers := make([]int, len(b.Episodes))
	for i, ep := range b.Episodes {
		numbers[i] = ep.Number
	}
	return numbers
}
