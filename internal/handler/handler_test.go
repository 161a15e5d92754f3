package handler

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
	"pgregory.net/rapid"

	"gacha-bot/internal/game/slot"
	"gacha-bot/internal/model"
	"gacha-bot/internal/repository"
	"gacha-bot/internal/service"
)

func TestParseCardID(t *testing.T) {
	id, err := parseCardID([]string{"42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	id, err = parseCardID([]string{"#7", "extra"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	for _, args := range [][]string{nil, {"abc"}, {"-1"}, {""}} {
		_, err := parseCardID(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseCardIDProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.Int64Range(0, 1<<53).Draw(t, "id")
		got, err := parseCardID([]string{fmt.Sprint(id)})
		if err != nil || got != id {
			t.Fatalf("parseCardID(%d) = %d, %v", id, got, err)
		}
	})
}

func TestParseAdminArgs(t *testing.T) {
	target, amount, err := parseAdminArgs([]string{"123", "5"})
	require.NoError(t, err)
	assert.Equal(t, int64(123), target)
	assert.Equal(t, int64(5), amount)

	for _, args := range [][]string{{"123"}, {"x", "5"}, {"123", "0"}, {"123", "-2"}, {"1", "2", "3"}} {
		_, _, err := parseAdminArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseThreadType(t *testing.T) {
	got, err := parseThreadType([]string{"MAIN"})
	require.NoError(t, err)
	assert.Equal(t, model.ThreadMain, got)

	got, err = parseThreadType([]string{"trade"})
	require.NoError(t, err)
	assert.Equal(t, model.ThreadTrade, got)

	_, err = parseThreadType([]string{"casino"})
	assert.Error(t, err)
	_, err = parseThreadType(nil)
	assert.Error(t, err)
}

func TestCardErrorMessage(t *testing.T) {
	cases := []struct {
		err      error
		contains string
		expected bool
	}{
		{repository.ErrCardNotFound, "not found", true},
		{fmt.Errorf("wrapped: %w", repository.ErrCardAlreadyClaimed), "already claimed", true},
		{repository.ErrCardNotOwned, "don't own", true},
		{repository.ErrCardLocked, "locked", true},
		{service.ErrWrongChat, "another chat", true},
		{service.ErrNoCharacters, "/addcharacter", true},
		{errors.New("boom"), "went wrong", false},
	}
	for _, tc := range cases {
		msg, ok := cardErrorMessage(tc.err)
		assert.Equal(t, tc.expected, ok, tc.err.Error())
		assert.Contains(t, msg, tc.contains)
	}
}

func TestFormatCard(t *testing.T) {
	card := &model.Card{ID: 9, BaseName: "Alice", Modifier: "Shiny", Rarity: model.RarityLegendary, Locked: true}
	assert.Equal(t, "🌟 #9 Shiny Alice [Legendary] 🔒", formatCard(card))

	card = &model.Card{ID: 3, BaseName: "Bob", Rarity: model.RarityCommon}
	assert.Equal(t, "⚪ #3 Bob [Common]", formatCard(card))
}

func TestFormatCardList_Truncates(t *testing.T) {
	cards := make([]*model.Card, maxListed+5)
	for i := range cards {
		cards[i] = &model.Card{ID: int64(i), BaseName: "X", Rarity: model.RarityRare}
	}
	out := formatCardList("Title", cards)
	assert.True(t, strings.HasPrefix(out, "Title (35)"))
	assert.True(t, strings.HasSuffix(out, "… and 5 more"))
	assert.Equal(t, maxListed+3, strings.Count(out, "\n")+1)
}

func TestFormatWait(t *testing.T) {
	assert.Equal(t, "less than a minute", formatWait(30*time.Second))
	assert.Equal(t, "5m", formatWait(5*time.Minute))
	assert.Equal(t, "2h", formatWait(2*time.Hour))
	assert.Equal(t, "23h 59m", formatWait(23*time.Hour+59*time.Minute))
}

func TestFormatSpin(t *testing.T) {
	reels, err := slot.Decode(64)
	require.NoError(t, err)

	out := formatSpin(&service.SpinResult{Reels: reels, Reward: slot.RewardMegaspin, Megaspins: 1, Balance: 9}, "spins")
	assert.Contains(t, out, "Jackpot")
	assert.Contains(t, out, "Left: 9 spins")

	out = formatSpin(&service.SpinResult{Reels: reels, Reward: slot.RewardClaim, Claims: 1}, "spins")
	assert.Contains(t, out, "+1 claim\n")

	out = formatSpin(&service.SpinResult{Reels: reels, Reward: slot.RewardClaim, Claims: 5}, "megaspins")
	assert.Contains(t, out, "+5 claims")

	out = formatSpin(&service.SpinResult{
		Reels:    reels,
		Unlocked: []*model.Achievement{{Name: "Lucky"}},
	}, "spins")
	assert.Contains(t, out, "No luck")
	assert.Contains(t, out, "Achievement unlocked: Lucky")
}

func TestSenderName(t *testing.T) {
	assert.Equal(t, "alice", senderName(&tele.User{Username: "alice", FirstName: "Alice"}))
	assert.Equal(t, "Alice", senderName(&tele.User{FirstName: "Alice"}))
	assert.Nil(t, displayName(&tele.User{}))
	assert.Equal(t, "Alice Liddell", *displayName(&tele.User{FirstName: "Alice", LastName: "Liddell"}))
}
