package stream

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Variant is one downloadable rendition of an episode.
type Variant struct {
	Quality int    `json:"quality"`
	Audio   string `json:"audio"`
	URL     string `json:"url"`
}

// ParseVariants extracts the stream candidates from an episode playback page.
// Only buttons carrying a data-src attribute and a non-AV1 encode marker
// count. A missing or unparseable resolution becomes quality zero. Results
// are ordered ascending by quality.
func ParseVariants(html string) ([]Variant, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse playback page: %w", err)
	}

	var variants []Variant
	doc.Find(`button[data-src][data-av1="0"]`).Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("data-src")
		if src == "" {
			return
		}

		quality := 0
		if res, ok := sel.Attr("data-resolution"); ok {
			if q, err := strconv.Atoi(strings.TrimSpace(res)); err == nil {
				quality = q
			}
		}

		audio, _ := sel.Attr("data-audio")

		variants = append(variants, Variant{
			Quality: quality,
			Audio:   audio,
			URL:     src,
		})
	})

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Quality < variants[j].Quality
	})

	return variants, nil
}
