package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/service"
	"gacha-bot/internal/token"
)

// AccountHandler handles profile and balance commands.
type AccountHandler struct {
	profiles *service.ProfileService
	rolls    *service.RollService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(profiles *service.ProfileService, rolls *service.RollService) *AccountHandler {
	return &AccountHandler{profiles: profiles, rolls: rolls}
}

// HandleStart handles the /start command.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := ensureUser(ctx, h.profiles, sender); err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to register user")
		return c.Reply("❌ Failed to create your account, please try again later.")
	}

	return c.Reply(fmt.Sprintf(
		"🎴 Welcome @%s!\n\n"+
			"Commands:\n"+
			"/roll - roll a card (once a day)\n"+
			"/claim <id> - claim a rolled card\n"+
			"/collection - your cards here\n"+
			"/find <name> - search your cards\n"+
			"/lock <id>, /unlock <id> - protect a card\n"+
			"/burn <id> - burn a card for spins\n"+
			"/slots - spend a spin on the slot machine\n"+
			"/megaspin - spend a megaspin\n"+
			"/balance - your balances\n"+
			"/achievements - your achievements",
		senderName(sender),
	))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}

	if err := ensureUser(ctx, h.profiles, c.Sender()); err != nil {
		log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to register user")
		return c.Reply("❌ Failed to load your balance, please try again later.")
	}
	p, err := h.profiles.Profile(ctx, key.UserID, key.ChatID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", key.UserID).Str("chat_id", key.ChatID).Msg("Failed to load profile")
		return c.Reply("❌ Failed to load your balance, please try again later.")
	}

	rollLine := "🎲 Roll: ready"
	next, err := h.rolls.NextRollAt(ctx, key)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", key.UserID).Msg("Failed to load roll cooldown")
	} else if !next.IsZero() {
		rollLine = "🎲 Next roll in " + formatWait(time.Until(next))
	}

	return c.Reply(fmt.Sprintf(
		"📊 @%s\n"+
			"━━━━━━━━━━━━━━━\n"+
			"🎫 Claims: %d\n"+
			"🎰 Spins: %d\n"+
			"💫 Megaspins: %d\n"+
			"🃏 Cards: %d\n"+
			"%s\n\n"+
			"Profile: %s",
		senderName(c.Sender()), p.Claims, p.Spins, p.Megaspins, p.CardCount, rollLine,
		token.EncodeUserChatRoute(key.UserID, key.ChatID),
	))
}

// HandleAchievements handles the /achievements command.
func (h *AccountHandler) HandleAchievements(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}

	if err := ensureUser(ctx, h.profiles, c.Sender()); err != nil {
		log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to register user")
		return c.Reply("❌ Failed to load achievements, please try again later.")
	}
	p, err := h.profiles.Profile(ctx, key.UserID, key.ChatID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to load achievements")
		return c.Reply("❌ Failed to load achievements, please try again later.")
	}
	if len(p.Achievements) == 0 {
		return c.Reply("🏆 No achievements yet. Try /roll!")
	}

	var b strings.Builder
	b.WriteString("🏆 Achievements\n━━━━━━━━━━━━━━━\n")
	for _, a := range p.Achievements {
		fmt.Fprintf(&b, "• %s - %s\n", a.Name, a.Description)
	}
	return c.Reply(b.String())
}
