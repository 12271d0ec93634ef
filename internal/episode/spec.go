package episode

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mohdsabahat/anime-bot/pkg/models"
)

// specPattern matches comma separated episode numbers and inclusive ranges,
// e.g. "4", "1-3" or "1-3,7,9-12".
var specPattern = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)

// ValidSpec reports whether the given episode spec is syntactically valid.
func ValidSpec(spec string) bool {
	return specPattern.MatchString(strings.TrimSpace(spec))
}

// Expand turns an episode spec into a sorted list of unique episode numbers.
// Ranges are inclusive on both ends; a reversed range such as "5-3"
// contributes nothing.
func Expand(spec string) ([]int, error) {
	seen := make(map[int]struct{})

	for _, part := range strings.Split(strings.TrimSpace(spec), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if first, second, isRange := strings.Cut(part, "-"); isRange {
			start, err := strconv.Atoi(first)
			if err != nil {
				return nil, fmt.Errorf("invalid episode range %q: %w", part, err)
			}
			end, err := strconv.Atoi(second)
			if err != nil {
				return nil, fmt.Errorf("invalid episode range %q: %w", part, err)
			}
			for n := start; n <= end; n++ {
				seen[n] = struct{}{}
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid episode number %q: %w", part, err)
		}
		seen[n] = struct{}{}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	return numbers, nil
}

// Pick filters the available episodes down to the requested numbers.
// Numbers with no matching episode are skipped silently.
func Pick(available []models.Episode, wanted []int) []models.Episode {
	byNumber := make(map[int]models.Episode, len(available))
	for _, ep := range available {
		byNumber[ep.Number] = ep
	}

	picked := make([]models.Episode, 0, len(wanted))
	for _, n := range wanted {
		if ep, ok := byNumber[n]; ok {
			picked = append(picked, ep)
		}
	}

	return picked
}
