package service

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"gacha-bot/internal/model"
)

// cardSource adapts a card slice to fuzzy.Source, matching on the display title.
type cardSource []*model.Card

func (s cardSource) Len() int            { return len(s) }
func (s cardSource) String(i int) string { return strings.ToLower(s[i].Title()) }

// SortCards orders cards by rarity rank, then base name, then modifier.
func SortCards(cards []*model.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if ra, rb := model.RarityRank(a.Rarity), model.RarityRank(b.Rarity); ra != rb {
			return ra < rb
		}
		if a.BaseName != b.BaseName {
			return a.BaseName < b.BaseName
		}
		return a.Modifier < b.Modifier
	})
}

// FilterCards returns the cards whose title fuzzily matches query, best match
// first. An empty query returns cards unchanged.
func FilterCards(cards []*model.Card, query string) []*model.Card {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return cards
	}
	matches := fuzzy.FindFrom(query, cardSource(cards))
	out := make([]*model.Card, len(matches))
	for i, m := range matches {
		out[i] = cards[m.Index]
	}
	return out
}
