package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
	"gacha-bot/internal/service"
)

// SlotsHandler plays the slot machine with Telegram's slot dice.
type SlotsHandler struct {
	slots    *service.SlotService
	balances *service.Balances
	userLock *lock.KeyLock[model.BalanceKey]
}

// NewSlotsHandler creates a new SlotsHandler.
func NewSlotsHandler(slots *service.SlotService, balances *service.Balances, userLock *lock.KeyLock[model.BalanceKey]) *SlotsHandler {
	return &SlotsHandler{slots: slots, balances: balances, userLock: userLock}
}

// HandleSlots handles the /slots command.
func (h *SlotsHandler) HandleSlots(c tele.Context) error {
	return h.play(c, h.balances.Spins, h.slots.Spin, "spins")
}

// HandleMegaspin handles the /megaspin command.
func (h *SlotsHandler) HandleMegaspin(c tele.Context) error {
	return h.play(c, h.balances.Megaspins, h.slots.Megaspin, "megaspins")
}

type spinFunc func(ctx context.Context, key model.BalanceKey, value int) (*service.SpinResult, error)

func (h *SlotsHandler) play(c tele.Context, balance *service.Counter, spin spinFunc, unit string) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}

	return withUserLock(ctx, c, h.userLock, key, func() error {
		// Checked before sending the dice so an empty balance shows no animation.
		left, err := balance.Get(ctx, key)
		if err != nil {
			log.Error().Err(err).Int64("user_id", key.UserID).Msg("Failed to load balance")
			return c.Reply("❌ Something went wrong, please try again later.")
		}
		if left < 1 {
			return c.Reply(fmt.Sprintf("🎰 You have no %s left.", unit))
		}

		msg, err := c.Bot().Send(c.Chat(), tele.Slot)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", c.Chat().ID).Msg("Failed to send slot dice")
			return c.Reply("❌ Failed to spin, please try again later.")
		}
		if msg.Dice == nil {
			return c.Reply("❌ Failed to spin, please try again later.")
		}

		res, err := spin(ctx, key, msg.Dice.Value)
		if err != nil {
			log.Error().Err(err).Int64("user_id", key.UserID).Int("value", msg.Dice.Value).Msg("Failed to settle spin")
			return c.Reply("❌ Something went wrong, please try again later.")
		}
		if res.Insufficient {
			return c.Reply(fmt.Sprintf("🎰 You have no %s left.", unit))
		}
		return c.Reply(formatSpin(res, unit))
	})
}

func formatSpin(res *service.SpinResult, unit string) string {
	var line string
	switch {
	case res.Megaspins > 0:
		line = fmt.Sprintf("💫 Jackpot! +%d megaspin", res.Megaspins)
	case res.Claims == 1:
		line = "🎫 +1 claim"
	case res.Claims > 1:
		line = fmt.Sprintf("🎫 +%d claims", res.Claims)
	default:
		line = "No luck this time."
	}
	return fmt.Sprintf("🎰 %s\n%s\nLeft: %d %s%s", res.Reels, line, res.Balance, unit, formatUnlocked(res.Unlocked))
}
