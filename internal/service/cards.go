package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// Card flow errors.
var (
	ErrNoCharacters = errors.New("chat has no characters to roll from")
	ErrWrongChat    = errors.New("card belongs to another chat")
)

// rarityWeights is the roll distribution, out of 100.
var rarityWeights = []struct {
	rarity string
	weight int
}{
	{model.RarityCommon, 60},
	{model.RarityRare, 25},
	{model.RarityEpic, 11},
	{model.RarityLegendary, 4},
}

// Modifiers a rolled card can carry. The empty modifier is the plain card.
var Modifiers = []string{"", "", "", "Shiny", "Golden", "Cursed", "Holographic", "Vintage", "Neon"}

// burnRewards is the number of spins a burned card is worth, by rarity.
var burnRewards = map[string]int64{
	model.RarityCommon:    1,
	model.RarityRare:      2,
	model.RarityEpic:      3,
	model.RarityLegendary: 5,
}

// BurnReward returns the spins paid for burning a card of rarity.
func BurnReward(rarity string) int64 {
	if r, ok := burnRewards[rarity]; ok {
		return r
	}
	return 1
}

// Picker supplies randomness to rolls; *rand.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// pickRarity maps a roll in [0, 100) onto rarityWeights.
func pickRarity(roll int) string {
	acc := 0
	for _, w := range rarityWeights {
		acc += w.weight
		if roll < acc {
			return w.rarity
		}
	}
	return model.RarityCommon
}

// RollResult is the outcome of a roll attempt.
type RollResult struct {
	Allowed    bool
	NextRollAt time.Time
	Card       *model.Card
	Rolled     *model.RolledCard
	Unlocked   []*model.Achievement
}

// ClaimResult is the outcome of a claim attempt.
type ClaimResult struct {
	Card         *model.Card
	Balance      int64
	Insufficient bool
	Unlocked     []*model.Achievement
}

// BurnResult is the outcome of burning a card.
type BurnResult struct {
	Card     *model.Card
	Reward   int64
	Spins    int64
	Unlocked []*model.Achievement
}

// CardService implements the roll, claim, lock and burn flows.
type CardService struct {
	db        db.Conn
	cards     *repository.CardRepository
	rolled    *repository.RolledCardRepository
	modifiers *repository.ModifierCountRepository
	chats     *repository.ChatRepository
	sets      *repository.SetRepository
	balances  *Balances
	rolls     *RollService
	events    *EventService
	pick      Picker
}

// NewCardService creates a CardService. pick may be nil for the global source.
func NewCardService(pool db.Conn, balances *Balances, rolls *RollService, events *EventService, pick Picker) *CardService {
	if pick == nil {
		pick = globalPicker{}
	}
	return &CardService{
		db:        pool,
		cards:     repository.NewCardRepository(pool),
		rolled:    repository.NewRolledCardRepository(pool),
		modifiers: repository.NewModifierCountRepository(pool),
		chats:     repository.NewChatRepository(pool),
		sets:      repository.NewSetRepository(pool),
		balances:  balances,
		rolls:     rolls,
		events:    events,
		pick:      pick,
	}
}

// Roll creates a fresh unclaimed card in the chat if the user's cooldown has
// passed. A roll on cooldown is reported through RollResult.Allowed.
func (s *CardService) Roll(ctx context.Context, key model.BalanceKey) (*RollResult, error) {
	characters, err := s.chats.Characters(ctx, key.ChatID)
	if err != nil {
		return nil, err
	}
	if len(characters) == 0 {
		return nil, ErrNoCharacters
	}
	sets, err := s.sets.ActiveForSeason(ctx, model.ClassicSeasonID)
	if err != nil {
		return nil, err
	}

	res := &RollResult{}
	err = db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		next, err := s.rolls.NextRollAtTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if !next.IsZero() {
			res.NextRollAt = next
			_, err := s.events.RecordTx(ctx, tx, &model.Event{
				EventType: model.EventRoll,
				Outcome:   model.OutcomeDenied,
				UserID:    key.UserID,
				ChatID:    key.ChatID,
			}, map[string]any{"next_roll_at": next})
			return err
		}

		character := characters[s.pick.IntN(len(characters))]
		card := &model.Card{
			BaseName: character.Name,
			Modifier: Modifiers[s.pick.IntN(len(Modifiers))],
			Rarity:   pickRarity(s.pick.IntN(100)),
			ChatID:   key.ChatID,
			SeasonID: model.ClassicSeasonID,
		}
		if len(sets) > 0 {
			card.SetID = sets[s.pick.IntN(len(sets))].ID
		}

		created, err := s.cards.WithTx(tx).Create(ctx, card)
		if err != nil {
			return err
		}
		rolled, err := s.rolled.WithTx(tx).Create(ctx, created.ID, key.UserID)
		if err != nil {
			return err
		}
		if created.Modifier != "" {
			if err := s.modifiers.WithTx(tx).Increment(ctx, created.ChatID, created.SeasonID, created.Modifier); err != nil {
				return err
			}
		}
		if err := s.rolls.RecordRollTx(ctx, tx, key); err != nil {
			return err
		}
		unlocked, err := s.events.RecordTx(ctx, tx, &model.Event{
			EventType: model.EventRoll,
			Outcome:   model.OutcomeSuccess,
			UserID:    key.UserID,
			ChatID:    key.ChatID,
			CardID:    &created.ID,
		}, map[string]any{"rarity": created.Rarity, "modifier": created.Modifier})
		if err != nil {
			return err
		}

		res.Allowed = true
		res.Card = created
		res.Rolled = rolled
		res.Unlocked = unlocked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to roll: %w", err)
	}

	if res.Allowed {
		log.Info().
			Int64("user_id", key.UserID).
			Str("chat_id", key.ChatID).
			Int64("card_id", res.Card.ID).
			Str("rarity", res.Card.Rarity).
			Msg("Card rolled")
	}
	return res, nil
}

// Claim spends one claim point to take an unowned card of the chat. When the
// user has no claim point the result is marked Insufficient. A failed claim
// of an owned card keeps the point and records the attempt on the roll.
func (s *CardService) Claim(ctx context.Context, key model.BalanceKey, username string, cardID int64) (*ClaimResult, error) {
	res := &ClaimResult{}
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		cards := s.cards.WithTx(tx)
		card, err := cards.GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		if card.ChatID != key.ChatID {
			return ErrWrongChat
		}

		balance, ok, err := s.balances.Claims.DecrementTx(ctx, tx, key, 1)
		if err != nil {
			return err
		}
		res.Balance = balance
		if !ok {
			res.Insufficient = true
			_, err := s.events.RecordTx(ctx, tx, &model.Event{
				EventType: model.EventClaim,
				Outcome:   model.OutcomeInsufficient,
				UserID:    key.UserID,
				ChatID:    key.ChatID,
				CardID:    &cardID,
			}, nil)
			return err
		}

		claimed, err := cards.Claim(ctx, cardID, key.UserID, username)
		if err != nil {
			return err
		}
		unlocked, err := s.events.RecordTx(ctx, tx, &model.Event{
			EventType: model.EventClaim,
			Outcome:   model.OutcomeSuccess,
			UserID:    key.UserID,
			ChatID:    key.ChatID,
			CardID:    &cardID,
		}, nil)
		if err != nil {
			return err
		}
		res.Card = claimed
		res.Unlocked = unlocked
		return nil
	})
	if errors.Is(err, repository.ErrCardAlreadyClaimed) {
		s.markAttempted(ctx, cardID, username)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *CardService) markAttempted(ctx context.Context, cardID int64, username string) {
	rc, err := s.rolled.GetByCard(ctx, cardID)
	if err != nil {
		if !errors.Is(err, repository.ErrCardNotFound) {
			log.Warn().Err(err).Int64("card_id", cardID).Msg("Failed to load roll for claim attempt")
		}
		return
	}
	if err := s.rolled.MarkAttempted(ctx, rc.RollID, username); err != nil {
		log.Warn().Err(err).Int64("card_id", cardID).Msg("Failed to record claim attempt")
	}
}

// SetLocked locks or unlocks one of the user's cards. Locked cards cannot be burned.
func (s *CardService) SetLocked(ctx context.Context, key model.BalanceKey, cardID int64, locked bool) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.cards.WithTx(tx).SetLocked(ctx, cardID, key.UserID, locked); err != nil {
			return err
		}
		_, err := s.events.RecordTx(ctx, tx, &model.Event{
			EventType: model.EventLock,
			Outcome:   model.OutcomeSuccess,
			UserID:    key.UserID,
			ChatID:    key.ChatID,
			CardID:    &cardID,
		}, map[string]any{"locked": locked})
		return err
	})
}

// Burn destroys an unlocked card the user owns and pays spins by rarity.
func (s *CardService) Burn(ctx context.Context, key model.BalanceKey, cardID int64) (*BurnResult, error) {
	res := &BurnResult{}
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		cards := s.cards.WithTx(tx)
		card, err := cards.GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		if err := cards.Delete(ctx, cardID, key.UserID); err != nil {
			return err
		}

		res.Card = card
		res.Reward = BurnReward(card.Rarity)
		res.Spins, err = s.balances.Spins.IncrementTx(ctx, tx, key, res.Reward)
		if err != nil {
			return err
		}
		res.Unlocked, err = s.events.RecordTx(ctx, tx, &model.Event{
			EventType: model.EventBurn,
			Outcome:   model.OutcomeSuccess,
			UserID:    key.UserID,
			ChatID:    key.ChatID,
		}, map[string]any{"card_id": cardID, "rarity": card.Rarity, "reward": res.Reward})
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Get returns one card.
func (s *CardService) Get(ctx context.Context, cardID int64) (*model.Card, error) {
	return s.cards.GetByID(ctx, cardID)
}

// Collection returns the user's cards in a chat, sorted for display.
func (s *CardService) Collection(ctx context.Context, key model.BalanceKey) ([]*model.Card, error) {
	cards, err := s.cards.ListByUserChat(ctx, key)
	if err != nil {
		return nil, err
	}
	SortCards(cards)
	return cards, nil
}

// CollectionByUsername returns every card owned by username, sorted for
// display and fuzzily filtered by query when one is given.
func (s *CardService) CollectionByUsername(ctx context.Context, username, query string) ([]*model.Card, error) {
	cards, err := s.cards.ListByOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	SortCards(cards)
	return FilterCards(cards, query), nil
}

// AddCharacter registers a base name cards of a chat can be rolled from.
func (s *CardService) AddCharacter(ctx context.Context, chatID, name, imageB64 string) (*model.Character, error) {
	if err := s.chats.Ensure(ctx, chatID, ""); err != nil {
		return nil, err
	}
	return s.chats.AddCharacter(ctx, chatID, name, imageB64)
}
