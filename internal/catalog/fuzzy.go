package catalog

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mohdsabahat/anime-bot/pkg/models"
)

// Scoring weights for ranking catalog titles against a query.
const (
	exactMatchScore = 1000
	positionPenalty = 2
	charMatchScore  = 10
)

// Score rates how well a title matches a query, case insensitively.
// A substring hit dominates and is penalized by how far into the title it
// starts. Otherwise each query character found in order is worth a small
// fixed amount, and a single missing character zeroes the score.
func Score(title, query string) int {
	t := strings.ToLower(title)
	q := strings.ToLower(strings.TrimSpace(query))
	if t == "" || q == "" {
		return 0
	}

	if idx := strings.Index(t, q); idx >= 0 {
		return exactMatchScore - positionPenalty*idx
	}

	score := 0
	pos := 0
	for _, ch := range q {
		offset := strings.IndexRune(t[pos:], ch)
		if offset < 0 {
			return 0
		}
		score += charMatchScore
		pos += offset + utf8.RuneLen(ch)
	}

	return score
}

// Rank orders entries by descending match score against the query, dropping
// non-matches and truncating to limit. Equal scores keep catalog order.
// A limit of zero or less means no truncation.
func Rank(entries []models.Anime, query string, limit int) []models.Anime {
	type scoredEntry struct {
		entry models.Anime
		score int
	}

	matches := make([]scoredEntry, 0, len(entries))
	for _, e := range entries {
		if s := Score(e.Title, query); s > 0 {
			matches = append(matches, scoredEntry{entry: e, score: s})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	ranked := make([]models.Anime, len(matches))
	for i, m := range matches {
		ranked[i] = m.entry
	}

	return ranked
}
