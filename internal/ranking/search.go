// Package ranking holds the query-time functions run against an assembled
// gallery: AND-search, relatedness, tag popularity and pagination. All of
// them are pure and safe for concurrent use; none modifies its input.
package ranking

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/galdr/internal/models"
)

// Per-token field weights.
const (
	TitleWeight  = 3
	TagWeight    = 2
	PromptWeight = 1
)

// Search returns the items matching every whitespace-separated token of
// query, best first. A token matches an item when it is a case-insensitive
// substring of the title, of any tag, or of the prompt. Each token adds the
// weight of every field it hits; ties go to the shorter title and then keep
// input order. A blank query returns items unchanged.
func Search(items []models.Item, query string) []models.Item {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return items
	}

	type hit struct {
		item     models.Item
		score    int
		titleLen int
	}
	var hits []hit
	for _, it := range items {
		score, ok := searchScore(it, tokens)
		if !ok {
			continue
		}
		hits = append(hits, hit{item: it, score: score, titleLen: utf8.RuneCountInString(it.Title)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].titleLen < hits[j].titleLen
	})

	out := make([]models.Item, len(hits))
	for i, h := range hits {
		out[i] = h.item
	}
	return out
}

// searchScore returns the item's score for tokens, or false when some token
// matches no field.
func searchScore(it models.Item, tokens []string) (int, bool) {
	title := strings.ToLower(it.Title)
	prompt := strings.ToLower(it.Prompt)
	tags := make([]string, len(it.Tags))
	for i, t := range it.Tags {
		tags[i] = strings.ToLower(t)
	}

	score := 0
	for _, tok := range tokens {
		inTitle := strings.Contains(title, tok)
		inTags := false
		for _, t := range tags {
			if strings.Contains(t, tok) {
				inTags = true
				break
			}
		}
		inPrompt := strings.Contains(prompt, tok)
		if !inTitle && !inTags && !inPrompt {
			return 0, false
		}
		if inTitle {
			score += TitleWeight
		}
		if inTags {
			score += TagWeight
		}
		if inPrompt {
			score += PromptWeight
		}
	}
	return score, true
}
