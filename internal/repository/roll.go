package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// RollRepository stores the last roll time per (user, chat).
type RollRepository struct {
	q db.Querier
}

// NewRollRepository creates a new RollRepository instance.
func NewRollRepository(q db.Querier) *RollRepository {
	return &RollRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *RollRepository) WithTx(tx pgx.Tx) *RollRepository {
	return &RollRepository{q: tx}
}

// LastRoll returns the last roll time, or nil if the user never rolled in the chat.
func (r *RollRepository) LastRoll(ctx context.Context, key model.BalanceKey) (*time.Time, error) {
	const query = `
		SELECT last_roll_time FROM user_rolls
		WHERE user_id = $1 AND chat_id = $2
		FOR UPDATE
	`
	var t time.Time
	err := r.q.QueryRow(ctx, query, key.UserID, key.ChatID).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last roll: %w", err)
	}
	t = t.UTC()
	return &t, nil
}

// Record stamps at as the last roll time.
func (r *RollRepository) Record(ctx context.Context, key model.BalanceKey, at time.Time) error {
	const query = `
		INSERT INTO user_rolls (user_id, chat_id, last_roll_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET last_roll_time = EXCLUDED.last_roll_time
	`
	if _, err := r.q.Exec(ctx, query, key.UserID, key.ChatID, at.UTC()); err != nil {
		return fmt.Errorf("failed to record roll: %w", err)
	}
	return nil
}
