// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
	"gacha-bot/internal/repository"
	"gacha-bot/internal/service"
)

// handlerTimeout bounds the database work of one command.
const handlerTimeout = 15 * time.Second

// userLockWait is how long a command waits for the same user's previous command.
var userLockWait = 5 * time.Second

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// withUserLock runs fn while holding the lock of key. When an earlier command
// of the same user still holds it, the user is told to retry and fn is skipped.
func withUserLock(ctx context.Context, c tele.Context, locks *lock.KeyLock[model.BalanceKey], key model.BalanceKey, fn func() error) error {
	err := locks.WithLockContext(ctx, key, userLockWait, fn)
	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		log.Warn().Int64("user_id", key.UserID).Str("chat_id", key.ChatID).Msg("User lock busy")
		return c.Reply("⏳ Your previous command is still running, try again in a moment.")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.Reply("❌ Something went wrong, please try again later.")
	}
	return err
}

// balanceKey returns the (user, chat) key of the update.
func balanceKey(c tele.Context) (model.BalanceKey, bool) {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return model.BalanceKey{}, false
	}
	return model.BalanceKey{UserID: sender.ID, ChatID: strconv.FormatInt(chat.ID, 10)}, true
}

// senderName returns the username of u, falling back to the first name.
func senderName(u *tele.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

func displayName(u *tele.User) *string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return nil
	}
	return &name
}

func ensureUser(ctx context.Context, profiles *service.ProfileService, u *tele.User) error {
	_, err := profiles.EnsureUser(ctx, u.ID, senderName(u), displayName(u))
	return err
}

// parseCardID parses the card id argument of a command.
func parseCardID(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, errors.New("missing card id")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid card id %q", args[0])
	}
	return id, nil
}

// cardErrorMessage turns a card flow error into a reply. ok is false for
// unexpected errors, which the caller should log.
func cardErrorMessage(err error) (msg string, ok bool) {
	switch {
	case errors.Is(err, repository.ErrCardNotFound):
		return "❌ Card not found.", true
	case errors.Is(err, repository.ErrCardAlreadyClaimed):
		return "❌ Someone already claimed that card.", true
	case errors.Is(err, repository.ErrCardNotOwned):
		return "❌ You don't own that card.", true
	case errors.Is(err, repository.ErrCardLocked):
		return "🔒 That card is locked. /unlock it first.", true
	case errors.Is(err, service.ErrWrongChat):
		return "❌ That card belongs to another chat.", true
	case errors.Is(err, service.ErrNoCharacters):
		return "❌ This chat has no characters yet. An admin can add some with /addcharacter <name>.", true
	default:
		return "❌ Something went wrong, please try again later.", false
	}
}

func replyCardError(c tele.Context, err error, action string) error {
	msg, ok := cardErrorMessage(err)
	if !ok {
		log.Error().Err(err).Str("action", action).Msg("Card command failed")
	}
	return c.Reply(msg)
}

func formatCard(card *model.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d %s [%s]", rarityIcon(card.Rarity), card.ID, card.Title(), card.Rarity)
	if card.Locked {
		b.WriteString(" 🔒")
	}
	return b.String()
}

func rarityIcon(rarity string) string {
	switch rarity {
	case model.RarityLegendary:
		return "🌟"
	case model.RarityEpic:
		return "💜"
	case model.RarityRare:
		return "💙"
	default:
		return "⚪"
	}
}

func formatUnlocked(unlocked []*model.Achievement) string {
	if len(unlocked) == 0 {
		return ""
	}
	var b strings.Builder
	for _, a := range unlocked {
		fmt.Fprintf(&b, "\n🏆 Achievement unlocked: %s", a.Name)
	}
	return b.String()
}

func formatWait(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}
