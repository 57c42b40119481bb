package ranking

import (
	"sort"
	"strings"

	"github.com/starford/galdr/internal/models"
)

// DefaultTagLimit is the number of popular tags shown when none is requested.
const DefaultTagLimit = 10

// TagCount is one aggregated tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PopularTags returns the most used tags, most frequent first, ties broken
// by the tag's display form. See TagCounts.
func PopularTags(items []models.Item, limit int) []string {
	counts := TagCounts(items, limit)
	out := make([]string, len(counts))
	for i, c := range counts {
		out[i] = c.Tag
	}
	return out
}

// TagCounts counts, per case-insensitive tag, the items carrying it. Tags are
// trimmed and blanks ignored; an item repeating a tag counts once. The
// display form is the casing seen first. limit <= 0 returns every tag.
func TagCounts(items []models.Item, limit int) []TagCount {
	index := map[string]int{}
	var counts []TagCount
	for _, it := range items {
		seen := map[string]struct{}{}
		for _, raw := range it.Tags {
			t := strings.TrimSpace(raw)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if i, ok := index[key]; ok {
				counts[i].Count++
				continue
			}
			index[key] = len(counts)
			counts = append(counts, TagCount{Tag: t, Count: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tag < counts[j].Tag
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
