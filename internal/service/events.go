package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// EventService appends telemetry events and evaluates achievements against them.
type EventService struct {
	db           db.TxBeginner
	repo         *repository.EventRepository
	achievements *AchievementService
}

// NewEventService creates an EventService. achievements may be nil.
func NewEventService(pool db.Conn, achievements *AchievementService) *EventService {
	return &EventService{
		db:           pool,
		repo:         repository.NewEventRepository(pool),
		achievements: achievements,
	}
}

// Record appends an event in its own transaction.
func (s *EventService) Record(ctx context.Context, e *model.Event, payload any) ([]*model.Achievement, error) {
	var unlocked []*model.Achievement
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		unlocked, err = s.RecordTx(ctx, tx, e, payload)
		return err
	})
	return unlocked, err
}

// RecordTx appends an event inside tx and returns achievements it newly unlocked.
func (s *EventService) RecordTx(ctx context.Context, tx pgx.Tx, e *model.Event, payload any) ([]*model.Achievement, error) {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event payload: %w", err)
		}
		e.Payload = raw
	}

	created, err := s.repo.WithTx(tx).Create(ctx, e)
	if err != nil {
		return nil, err
	}
	*e = *created

	log.Debug().
		Int64("user_id", e.UserID).
		Str("chat_id", e.ChatID).
		Str("event_type", e.EventType).
		Str("outcome", e.Outcome).
		Msg("Event recorded")

	if s.achievements == nil {
		return nil, nil
	}
	return s.achievements.CheckTx(ctx, tx, e.UserID, e.EventType, e.Outcome)
}

// ListRecent returns the newest events of a user in a chat.
func (s *EventService) ListRecent(ctx context.Context, key model.BalanceKey, limit int) ([]*model.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, key, limit)
}
