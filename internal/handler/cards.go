package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
	"gacha-bot/internal/service"
)

// ClaimCallbackPrefix prefixes the callback data of claim buttons.
const ClaimCallbackPrefix = "claim_"

// maxListed caps the cards shown in one reply.
const maxListed = 30

// CardHandler handles the roll, claim, collection, lock and burn commands.
type CardHandler struct {
	cards    *service.CardService
	profiles *service.ProfileService
	userLock *lock.KeyLock[model.BalanceKey]
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cards *service.CardService, profiles *service.ProfileService, userLock *lock.KeyLock[model.BalanceKey]) *CardHandler {
	return &CardHandler{cards: cards, profiles: profiles, userLock: userLock}
}

// HandleRoll handles the /roll command.
func (h *CardHandler) HandleRoll(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}
	if err := ensureUser(ctx, h.profiles, c.Sender()); err != nil {
		return replyCardError(c, err, "roll")
	}

	return withUserLock(ctx, c, h.userLock, key, func() error {
		res, err := h.cards.Roll(ctx, key)
		if err != nil {
			return replyCardError(c, err, "roll")
		}
		if !res.Allowed {
			return c.Reply("⏰ You already rolled today. Next roll in " + formatWait(time.Until(res.NextRollAt)) + ".")
		}

		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data("🎫 Claim", "claim", ClaimCallbackPrefix+strconv.FormatInt(res.Card.ID, 10))))

		text := fmt.Sprintf("🎴 @%s rolled %s\nAnyone can /claim %d.%s",
			senderName(c.Sender()), formatCard(res.Card), res.Card.ID, formatUnlocked(res.Unlocked))
		return c.Reply(text, markup)
	})
}

// HandleClaim handles the /claim <card_id> command.
func (h *CardHandler) HandleClaim(c tele.Context) error {
	cardID, err := parseCardID(c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /claim <card_id>")
	}
	return h.claim(c, cardID)
}

// HandleClaimCallback handles a press of a claim button.
func (h *CardHandler) HandleClaimCallback(c tele.Context) error {
	data := strings.TrimPrefix(strings.TrimPrefix(c.Callback().Data, "\f"), "claim|")
	cardID, err := parseCardID([]string{strings.TrimPrefix(data, ClaimCallbackPrefix)})
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Invalid card"})
	}
	if err := c.Respond(); err != nil {
		log.Debug().Err(err).Msg("Failed to answer callback")
	}
	return h.claim(c, cardID)
}

func (h *CardHandler) claim(c tele.Context, cardID int64) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}
	if err := ensureUser(ctx, h.profiles, c.Sender()); err != nil {
		return replyCardError(c, err, "claim")
	}

	return withUserLock(ctx, c, h.userLock, key, func() error {
		res, err := h.cards.Claim(ctx, key, senderName(c.Sender()), cardID)
		if err != nil {
			return replyCardError(c, err, "claim")
		}
		if res.Insufficient {
			return c.Reply("🎫 You have no claims left. Win more on /slots.")
		}
		return c.Send(fmt.Sprintf("✅ @%s claimed %s\n🎫 Claims left: %d%s",
			senderName(c.Sender()), formatCard(res.Card), res.Balance, formatUnlocked(res.Unlocked)))
	})
}

// HandleCollection handles the /collection command.
func (h *CardHandler) HandleCollection(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}

	cards, err := h.cards.Collection(ctx, key)
	if err != nil {
		return replyCardError(c, err, "collection")
	}
	if len(cards) == 0 {
		return c.Reply("🃏 You have no cards in this chat yet. Try /roll!")
	}
	return c.Reply(formatCardList("🃏 Your collection", cards))
}

// HandleFind handles the /find <name> command.
func (h *CardHandler) HandleFind(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Reply("❌ Usage: /find <name>")
	}

	cards, err := h.cards.Collection(ctx, key)
	if err != nil {
		return replyCardError(c, err, "find")
	}
	found := service.FilterCards(cards, query)
	if len(found) == 0 {
		return c.Reply("🔍 No cards match \"" + query + "\".")
	}
	return c.Reply(formatCardList("🔍 Matches for \""+query+"\"", found))
}

// HandleLock handles the /lock <card_id> command.
func (h *CardHandler) HandleLock(c tele.Context) error {
	return h.setLocked(c, true)
}

// HandleUnlock handles the /unlock <card_id> command.
func (h *CardHandler) HandleUnlock(c tele.Context) error {
	return h.setLocked(c, false)
}

func (h *CardHandler) setLocked(c tele.Context, locked bool) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}
	cardID, err := parseCardID(c.Args())
	if err != nil {
		if locked {
			return c.Reply("❌ Usage: /lock <card_id>")
		}
		return c.Reply("❌ Usage: /unlock <card_id>")
	}

	if err := h.cards.SetLocked(ctx, key, cardID, locked); err != nil {
		return replyCardError(c, err, "lock")
	}
	if locked {
		return c.Reply(fmt.Sprintf("🔒 Card #%d is locked.", cardID))
	}
	return c.Reply(fmt.Sprintf("🔓 Card #%d is unlocked.", cardID))
}

// HandleBurn handles the /burn <card_id> command.
func (h *CardHandler) HandleBurn(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()
	key, ok := balanceKey(c)
	if !ok {
		return nil
	}
	cardID, err := parseCardID(c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /burn <card_id>")
	}

	return withUserLock(ctx, c, h.userLock, key, func() error {
		res, err := h.cards.Burn(ctx, key, cardID)
		if err != nil {
			return replyCardError(c, err, "burn")
		}
		return c.Reply(fmt.Sprintf("🔥 Burned %s for %d spins.\n🎰 Spins: %d%s",
			formatCard(res.Card), res.Reward, res.Spins, formatUnlocked(res.Unlocked)))
	})
}

func formatCardList(title string, cards []*model.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n━━━━━━━━━━━━━━━\n", title, len(cards))
	for i, card := range cards {
		if i == maxListed {
			fmt.Fprintf(&b, "… and %d more", len(cards)-maxListed)
			break
		}
		b.WriteString(formatCard(card))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
