package ranking

import (
	"sort"
	"strings"

	"github.com/starford/galdr/internal/models"
)

// Relatedness bonuses on top of one point per shared tag.
const (
	StyleBonus       = 0.5
	OrientationBonus = 0.2
)

// RelatedScore scores candidate against focal: the number of distinct tags
// they share (case-insensitive), plus StyleBonus for an identical style and
// OrientationBonus for an identical orientation. The bonuses only count when
// at least one tag is shared; otherwise the score is 0, so a candidate that
// matches on style or orientation alone is never listed as related.
func RelatedScore(candidate, focal models.Item) float64 {
	focalTags := tagSet(focal.Tags)
	shared := 0
	for t := range tagSet(candidate.Tags) {
		if _, ok := focalTags[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	score := float64(shared)
	if candidate.Style == focal.Style {
		score += StyleBonus
	}
	if candidate.Orientation == focal.Orientation {
		score += OrientationBonus
	}
	return score
}

// Related returns the items related to focal, highest score first, ties in
// input order. The focal item itself (matched by id) and items scoring 0 are
// excluded.
func Related(items []models.Item, focal models.Item) []models.Item {
	type scored struct {
		item  models.Item
		score float64
	}
	var list []scored
	for _, it := range items {
		if it.ID == focal.ID {
			continue
		}
		if s := RelatedScore(it, focal); s > 0 {
			list = append(list, scored{item: it, score: s})
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })

	out := make([]models.Item, len(list))
	for i, s := range list {
		out[i] = s.item
	}
	return out
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = struct{}{}
	}
	return set
}
