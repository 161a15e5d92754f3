package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gacha-bot/internal/model"
)

func TestPickRarity_Distribution(t *testing.T) {
	counts := map[string]int{}
	for roll := 0; roll < 100; roll++ {
		counts[pickRarity(roll)]++
	}
	assert.Equal(t, 60, counts[model.RarityCommon])
	assert.Equal(t, 25, counts[model.RarityRare])
	assert.Equal(t, 11, counts[model.RarityEpic])
	assert.Equal(t, 4, counts[model.RarityLegendary])
}

func TestBurnReward(t *testing.T) {
	assert.Equal(t, int64(5), BurnReward(model.RarityLegendary))
	assert.Equal(t, int64(3), BurnReward(model.RarityEpic))
	assert.Equal(t, int64(2), BurnReward(model.RarityRare))
	assert.Equal(t, int64(1), BurnReward(model.RarityCommon))
	assert.Equal(t, int64(1), BurnReward("Mythic"))
}

func card(base, modifier, rarity string) *model.Card {
	return &model.Card{BaseName: base, Modifier: modifier, Rarity: rarity}
}

func TestSortCards(t *testing.T) {
	cards := []*model.Card{
		card("Zed", "", model.RarityCommon),
		card("Bob", "Shiny", model.RarityRare),
		card("Amy", "", "Mythic"),
		card("Bob", "", model.RarityRare),
		card("Cat", "", model.RarityLegendary),
		card("Ann", "", model.RarityEpic),
	}
	SortCards(cards)

	var got []string
	for _, c := range cards {
		got = append(got, c.Title())
	}
	assert.Equal(t, []string{"Cat", "Ann", "Bob", "Shiny Bob", "Amy", "Zed"}, got)
}

// TestSortCardsProperty checks that sorted output is ordered by rarity rank,
// then base name, then modifier.
func TestSortCardsProperty(t *testing.T) {
	rarities := []string{model.RarityLegendary, model.RarityEpic, model.RarityRare, model.RarityCommon, "Other"}
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		cards := make([]*model.Card, n)
		for i := range cards {
			cards[i] = card(
				rapid.SampledFrom([]string{"A", "B", "C"}).Draw(t, "base"),
				rapid.SampledFrom(Modifiers).Draw(t, "modifier"),
				rapid.SampledFrom(rarities).Draw(t, "rarity"),
			)
		}
		SortCards(cards)
		for i := 1; i < len(cards); i++ {
			a, b := cards[i-1], cards[i]
			ra, rb := model.RarityRank(a.Rarity), model.RarityRank(b.Rarity)
			if ra > rb || (ra == rb && a.BaseName > b.BaseName) ||
				(ra == rb && a.BaseName == b.BaseName && a.Modifier > b.Modifier) {
				t.Fatalf("cards %d and %d out of order: %+v, %+v", i-1, i, a, b)
			}
		}
	})
}

func TestFilterCards(t *testing.T) {
	cards := []*model.Card{
		card("Alice", "Shiny", model.RarityRare),
		card("Bob", "", model.RarityCommon),
		card("Alina", "", model.RarityEpic),
	}

	assert.Len(t, FilterCards(cards, ""), 3)

	got := FilterCards(cards, "ali")
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Contains(t, []string{"Alice", "Alina"}, c.BaseName)
	}

	assert.Empty(t, FilterCards(cards, "zzz"))
	assert.Len(t, FilterCards(cards, "SHINY"), 1)
}

func TestParseCatalogue(t *testing.T) {
	defs := DefaultCatalogue()
	require.NotEmpty(t, defs)
	for _, d := range defs {
		assert.NotEmpty(t, d.Event, d.Slug)
		assert.GreaterOrEqual(t, d.Threshold, int64(1), d.Slug)
	}

	_, err := ParseCatalogue([]byte(`
[[achievement]]
slug = "a"
name = "A"
[[achievement]]
slug = "a"
name = "Again"
`))
	assert.ErrorIs(t, err, ErrBadCatalogue)

	_, err = ParseCatalogue([]byte(`
[[achievement]]
name = "No slug"
`))
	assert.ErrorIs(t, err, ErrBadCatalogue)

	_, err = ParseCatalogue([]byte(`
[[achievement]]
slug = "a"
name = "A"
reward = 5
`))
	assert.Error(t, err)

	defs, err = ParseCatalogue([]byte(`
[[achievement]]
slug = "a"
name = "A"
event = "ROLL"
outcome = "SUCCESS"
`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), defs[0].Threshold)
}
