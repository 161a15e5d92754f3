package service

import (
	"context"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// ProfileService aggregates a user's standing in one chat.
type ProfileService struct {
	users        *repository.UserRepository
	cards        *repository.CardRepository
	balances     *Balances
	achievements *AchievementService
}

// NewProfileService creates a ProfileService.
func NewProfileService(pool db.Conn, balances *Balances, achievements *AchievementService) *ProfileService {
	return &ProfileService{
		users:        repository.NewUserRepository(pool),
		cards:        repository.NewCardRepository(pool),
		balances:     balances,
		achievements: achievements,
	}
}

// EnsureUser registers or refreshes a Telegram user.
func (s *ProfileService) EnsureUser(ctx context.Context, userID int64, username string, displayName *string) (*model.User, error) {
	return s.users.Upsert(ctx, userID, username, displayName)
}

// Profile returns the user's balances, card count and achievements in a chat.
// Absent balance rows are materialized with their defaults.
// Returns repository.ErrUserNotFound for unknown users.
func (s *ProfileService) Profile(ctx context.Context, userID int64, chatID string) (*model.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	key := model.BalanceKey{UserID: userID, ChatID: chatID}

	p := &model.Profile{User: user, ChatID: chatID}
	if p.Claims, err = s.balances.Claims.Get(ctx, key); err != nil {
		return nil, err
	}
	if p.Spins, err = s.balances.Spins.Get(ctx, key); err != nil {
		return nil, err
	}
	if p.Megaspins, err = s.balances.Megaspins.Get(ctx, key); err != nil {
		return nil, err
	}
	if p.CardCount, err = s.cards.CountByUserChat(ctx, key); err != nil {
		return nil, err
	}
	if p.Achievements, err = s.achievements.ListForUser(ctx, userID); err != nil {
		return nil, err
	}
	return p, nil
}
