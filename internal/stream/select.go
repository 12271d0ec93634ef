package stream

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// Choose picks the variant to download. Candidates are filtered to the
// preferred audio language first; when that language is absent every variant
// stays in play. Within the candidates the lowest quality at or above the
// target wins, and when nothing reaches the target the best available is
// taken. An empty candidate set yields nil.
func Choose(variants []Variant, quality int, audio string, log *logrus.Logger) *Variant {
	if len(variants) == 0 {
		return nil
	}

	candidates := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if v.Audio == audio {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		log.WithField("audio", audio).Warn("Preferred audio not available, considering all streams")
		candidates = append(candidates, variants...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Quality < candidates[j].Quality
	})

	for i := range candidates {
		if candidates[i].Quality >= quality {
			return &candidates[i]
		}
	}

	best := &candidates[len(candidates)-1]
	log.WithFields(logrus.Fields{
		"requested": quality,
		"selected":  best.Quality,
	}).Warn("Requested quality not available, downgrading to best available")

	return best
}
