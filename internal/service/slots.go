package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/game/slot"
	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// SpinResult is the outcome of one slot spin.
type SpinResult struct {
	Insufficient bool
	Reels        slot.Reels
	Reward       slot.Reward
	Claims       int64 // claim points paid
	Megaspins    int64 // megaspins paid
	Balance      int64 // spins or megaspins left after the spin
	Unlocked     []*model.Achievement
}

// Won reports whether the spin paid anything.
func (r *SpinResult) Won() bool {
	return r.Claims > 0 || r.Megaspins > 0
}

// Symbol is one entry of a chat's slot machine reel art.
type Symbol struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Image string `json:"image_b64,omitempty"`
}

// SlotService plays the slot machine with spin and megaspin balances.
type SlotService struct {
	db       db.TxBeginner
	chats    *repository.ChatRepository
	balances *Balances
	events   *EventService
}

// NewSlotService creates a SlotService.
func NewSlotService(pool db.Conn, balances *Balances, events *EventService) *SlotService {
	return &SlotService{
		db:       pool,
		chats:    repository.NewChatRepository(pool),
		balances: balances,
		events:   events,
	}
}

// Spin spends one spin on the dice value Telegram rolled.
func (s *SlotService) Spin(ctx context.Context, key model.BalanceKey, value int) (*SpinResult, error) {
	reels, err := slot.Decode(value)
	if err != nil {
		return nil, err
	}
	res := &SpinResult{Reels: reels, Reward: slot.SpinReward(reels)}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		balance, ok, err := s.balances.Spins.DecrementTx(ctx, tx, key, 1)
		if err != nil {
			return err
		}
		res.Balance = balance
		if !ok {
			res.Insufficient = true
			return nil
		}

		switch res.Reward {
		case slot.RewardMegaspin:
			res.Megaspins = 1
			_, err = s.balances.Megaspins.IncrementTx(ctx, tx, key, 1)
		case slot.RewardClaim:
			res.Claims = 1
			_, err = s.balances.Claims.IncrementTx(ctx, tx, key, 1)
		}
		if err != nil {
			return err
		}
		res.Unlocked, err = s.record(ctx, tx, key, value, res, "spin")
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Megaspin spends one megaspin. Megaspins always pay claim points.
func (s *SlotService) Megaspin(ctx context.Context, key model.BalanceKey, value int) (*SpinResult, error) {
	reels, err := slot.Decode(value)
	if err != nil {
		return nil, err
	}
	res := &SpinResult{Reels: reels, Reward: slot.RewardClaim}

	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		balance, ok, err := s.balances.Megaspins.DecrementTx(ctx, tx, key, 1)
		if err != nil {
			return err
		}
		res.Balance = balance
		if !ok {
			res.Insufficient = true
			return nil
		}
		res.Claims = slot.MegaspinClaims(reels)
		if _, err := s.balances.Claims.IncrementTx(ctx, tx, key, res.Claims); err != nil {
			return err
		}
		res.Unlocked, err = s.record(ctx, tx, key, value, res, "megaspin")
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SlotService) record(ctx context.Context, tx pgx.Tx, key model.BalanceKey, value int, res *SpinResult, kind string) ([]*model.Achievement, error) {
	outcome := model.OutcomeLoss
	if res.Won() {
		outcome = model.OutcomeWin
	}
	log.Debug().
		Int64("user_id", key.UserID).
		Str("chat_id", key.ChatID).
		Int("value", value).
		Str("reward", res.Reward.String()).
		Msg("Slot spun")
	return s.events.RecordTx(ctx, tx, &model.Event{
		EventType: model.EventSlots,
		Outcome:   outcome,
		UserID:    key.UserID,
		ChatID:    key.ChatID,
	}, map[string]any{
		"kind":      kind,
		"value":     value,
		"claims":    res.Claims,
		"megaspins": res.Megaspins,
	})
}

// Symbols returns the chat's characters followed by the rarity symbols,
// which together make up the reel art of the slots miniapp.
func (s *SlotService) Symbols(ctx context.Context, chatID string) ([]Symbol, error) {
	characters, err := s.chats.Characters(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]Symbol, 0, len(characters)+4)
	for _, c := range characters {
		out = append(out, Symbol{Name: c.Name, Kind: "character", Image: c.ImageB64})
	}
	for _, r := range []string{model.RarityLegendary, model.RarityEpic, model.RarityRare, model.RarityCommon} {
		out = append(out, Symbol{Name: r, Kind: "rarity"})
	}
	return out, nil
}
