// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gacha-bot/internal/config"
	"gacha-bot/internal/handler"
	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/lock"
	"gacha-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot    *tele.Bot
	cfg    *config.Config
	access *PrivateAccess

	accountHandler *handler.AccountHandler
	cardHandler    *handler.CardHandler
	slotsHandler   *handler.SlotsHandler
	adminHandler   *handler.AdminHandler
	chatHandler    *handler.ChatHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Balances *service.Balances
	Rolls    *service.RollService
	Cards    *service.CardService
	Slots    *service.SlotService
	Profiles *service.ProfileService
	Chats    handler.ThreadStore
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			ev := log.Error().Err(err)
			if c != nil && c.Chat() != nil {
				ev = ev.Int64("chat_id", c.Chat().ID)
			}
			ev.Msg("Telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	userLock := lock.New[model.BalanceKey]()
	b := &Bot{
		bot:            teleBot,
		cfg:            deps.Config,
		access:         NewPrivateAccess(),
		accountHandler: handler.NewAccountHandler(deps.Profiles, deps.Rolls),
		cardHandler:    handler.NewCardHandler(deps.Cards, deps.Profiles, userLock),
		slotsHandler:   handler.NewSlotsHandler(deps.Slots, deps.Balances, userLock),
		adminHandler:   handler.NewAdminHandler(deps.Balances, deps.Cards, userLock),
		chatHandler:    handler.NewChatHandler(deps.Chats),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.access))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/achievements", b.accountHandler.HandleAchievements)

	b.bot.Handle("/roll", b.cardHandler.HandleRoll)
	b.bot.Handle("/claim", b.cardHandler.HandleClaim)
	b.bot.Handle("/collection", b.cardHandler.HandleCollection)
	b.bot.Handle("/find", b.cardHandler.HandleFind)
	b.bot.Handle("/lock", b.cardHandler.HandleLock)
	b.bot.Handle("/unlock", b.cardHandler.HandleUnlock)
	b.bot.Handle("/burn", b.cardHandler.HandleBurn)

	b.bot.Handle("/slots", b.slotsHandler.HandleSlots)
	b.bot.Handle("/megaspin", b.slotsHandler.HandleMegaspin)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/setclaims", b.adminHandler.HandleSetClaims)
	adminGroup.Handle("/givespins", b.adminHandler.HandleGiveSpins)
	adminGroup.Handle("/addcharacter", b.adminHandler.HandleAddCharacter)
	adminGroup.Handle("/setthread", b.chatHandler.HandleSetThread)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes inline button presses.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot prefixes unique button data with \f.
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	if strings.HasPrefix(data, "claim|") || strings.HasPrefix(data, handler.ClaimCallbackPrefix) {
		return b.cardHandler.HandleClaimCallback(c)
	}
	return c.Respond()
}

// Start polls for updates until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Run starts the bot and stops it when ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()

	select {
	case <-ctx.Done():
		b.Stop()
		<-done
	case <-done:
	}
	return nil
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}
