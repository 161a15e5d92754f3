package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
	"gacha-bot/internal/service"
)

// AdminHandler handles admin-only commands.
type AdminHandler struct {
	balances *service.Balances
	cards    *service.CardService
	userLock *lock.KeyLock[model.BalanceKey]
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(balances *service.Balances, cards *service.CardService, userLock *lock.KeyLock[model.BalanceKey]) *AdminHandler {
	return &AdminHandler{balances: balances, cards: cards, userLock: userLock}
}

// HandleSetClaims handles the /setclaims <n> command. It overwrites every
// claim balance in every chat.
func (h *AdminHandler) HandleSetClaims(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()

	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /setclaims <amount>")
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount < 0 {
		return c.Reply("❌ Amount must be a non-negative number.")
	}

	n, err := h.balances.Claims.SetAll(ctx, amount)
	if errors.Is(err, service.ErrInvalidBalance) {
		return c.Reply(fmt.Sprintf("❌ Amount must be at most %d.", service.MaxBalance))
	}
	if err != nil {
		log.Error().Err(err).Int64("amount", amount).Msg("Failed to set claims")
		return c.Reply("❌ Operation failed.")
	}
	log.Info().
		Int64("admin_id", c.Sender().ID).
		Int64("amount", amount).
		Int64("rows", n).
		Msg("Admin set all claim balances")
	return c.Reply(fmt.Sprintf("✅ Set %d claim balances to %d.", n, amount))
}

// HandleGiveSpins handles the /givespins <user_id> <n> command in the current chat.
func (h *AdminHandler) HandleGiveSpins(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()

	targetID, amount, err := parseAdminArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}
	key := model.BalanceKey{UserID: targetID, ChatID: strconv.FormatInt(c.Chat().ID, 10)}

	return withUserLock(ctx, c, h.userLock, key, func() error {
		balance, err := h.balances.Spins.Increment(ctx, key, amount)
		if errors.Is(err, service.ErrBalanceOverflow) {
			return c.Reply(fmt.Sprintf("❌ That would put the balance above %d.", service.MaxBalance))
		}
		if err != nil {
			log.Error().Err(err).Int64("target_id", targetID).Msg("Failed to give spins")
			return c.Reply("❌ Operation failed.")
		}
		log.Info().
			Int64("admin_id", c.Sender().ID).
			Int64("target_id", targetID).
			Str("chat_id", key.ChatID).
			Int64("amount", amount).
			Msg("Admin gave spins")
		return c.Reply(fmt.Sprintf("✅ Gave %d spins to %d.\n🎰 Spins: %d", amount, targetID, balance))
	})
}

// HandleAddCharacter handles the /addcharacter <name> command.
func (h *AdminHandler) HandleAddCharacter(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()

	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Reply("❌ Usage: /addcharacter <name>")
	}
	character, err := h.cards.AddCharacter(ctx, strconv.FormatInt(c.Chat().ID, 10), name, "")
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to add character")
		return c.Reply("❌ Operation failed.")
	}
	return c.Reply(fmt.Sprintf("✅ Added character #%d %s.", character.ID, character.Name))
}

// parseAdminArgs parses "<user_id> <amount>" with a positive amount.
func parseAdminArgs(args []string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("❌ Usage: /givespins <user_id> <amount>")
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ Invalid user id")
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return 0, 0, fmt.Errorf("❌ Amount must be a positive number")
	}
	return targetID, amount, nil
}
