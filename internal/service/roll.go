package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// DefaultRollCooldown is the time between two rolls of a user in one chat.
const DefaultRollCooldown = 24 * time.Hour

// RollService tracks when a user may roll again.
type RollService struct {
	db       db.TxBeginner
	repo     *repository.RollRepository
	cooldown time.Duration
	now      func() time.Time
}

// NewRollService creates a RollService. A non-positive cooldown means DefaultRollCooldown.
func NewRollService(pool db.Conn, cooldown time.Duration) *RollService {
	if cooldown <= 0 {
		cooldown = DefaultRollCooldown
	}
	return &RollService{
		db:       pool,
		repo:     repository.NewRollRepository(pool),
		cooldown: cooldown,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Cooldown returns the configured cooldown.
func (s *RollService) Cooldown() time.Duration {
	return s.cooldown
}

// CanRoll reports whether the user never rolled in the chat or the cooldown has passed.
func (s *RollService) CanRoll(ctx context.Context, key model.BalanceKey) (bool, error) {
	next, err := s.NextRollAt(ctx, key)
	if err != nil {
		return false, err
	}
	return next.IsZero(), nil
}

// NextRollAt returns when the user may roll again, or the zero time if they may roll now.
func (s *RollService) NextRollAt(ctx context.Context, key model.BalanceKey) (time.Time, error) {
	var next time.Time
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		next, err = s.NextRollAtTx(ctx, tx, key)
		return err
	})
	return next, err
}

// NextRollAtTx is NextRollAt inside an existing transaction. The roll row,
// if any, stays locked until tx ends.
func (s *RollService) NextRollAtTx(ctx context.Context, tx pgx.Tx, key model.BalanceKey) (time.Time, error) {
	last, err := s.repo.WithTx(tx).LastRoll(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	ready, next := rollReady(last, s.now(), s.cooldown)
	if ready {
		return time.Time{}, nil
	}
	return next, nil
}

// RecordRoll stamps now as the last roll time.
func (s *RollService) RecordRoll(ctx context.Context, key model.BalanceKey) error {
	return db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.RecordRollTx(ctx, tx, key)
	})
}

// RecordRollTx is RecordRoll inside an existing transaction.
func (s *RollService) RecordRollTx(ctx context.Context, tx pgx.Tx, key model.BalanceKey) error {
	return s.repo.WithTx(tx).Record(ctx, key, s.now())
}

// rollReady reports whether a roll is allowed at now, and otherwise when it will be.
func rollReady(last *time.Time, now time.Time, cooldown time.Duration) (bool, time.Time) {
	if last == nil {
		return true, time.Time{}
	}
	next := last.UTC().Add(cooldown)
	if !now.UTC().Before(next) {
		return true, time.Time{}
	}
	return false, next
}
