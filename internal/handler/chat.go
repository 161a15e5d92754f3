package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/model"
)

// ThreadStore binds message threads of a chat.
type ThreadStore interface {
	Ensure(ctx context.Context, chatID, title string) error
	SetThread(ctx context.Context, chatID, threadType string, threadID int64) error
}

// ChatHandler handles chat configuration commands.
type ChatHandler struct {
	chats ThreadStore
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chats ThreadStore) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// HandleSetThread handles the /setthread <main|trade> command, binding the
// topic it is sent in.
func (h *ChatHandler) HandleSetThread(c tele.Context) error {
	ctx, cancel := commandContext()
	defer cancel()

	threadType, err := parseThreadType(c.Args())
	if err != nil {
		return c.Reply("❌ Usage: /setthread <main|trade>")
	}
	msg := c.Message()
	if msg == nil || msg.ThreadID == 0 {
		return c.Reply("❌ Send this command inside a topic.")
	}

	chatID := strconv.FormatInt(c.Chat().ID, 10)
	if err := h.chats.Ensure(ctx, chatID, c.Chat().Title); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to register chat")
		return c.Reply("❌ Operation failed.")
	}
	if err := h.chats.SetThread(ctx, chatID, threadType, int64(msg.ThreadID)); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to set thread")
		return c.Reply("❌ Operation failed.")
	}
	return c.Reply(fmt.Sprintf("✅ This topic is now the %s thread.", threadType))
}

func parseThreadType(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected one argument")
	}
	switch t := strings.ToLower(args[0]); t {
	case model.ThreadMain, model.ThreadTrade:
		return t, nil
	default:
		return "", fmt.Errorf("unknown thread type %q", args[0])
	}
}
