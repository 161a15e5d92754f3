package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// EventRepository appends to and reads the event log. Events are never updated.
type EventRepository struct {
	q db.Querier
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(q db.Querier) *EventRepository {
	return &EventRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *EventRepository) WithTx(tx pgx.Tx) *EventRepository {
	return &EventRepository{q: tx}
}

const eventColumns = `id, event_type, outcome, user_id, chat_id, card_id, occurred_at, payload`

// Create appends an event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (event_type, outcome, user_id, chat_id, card_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + eventColumns

	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}

	var out model.Event
	var raw []byte
	err := r.q.QueryRow(ctx, query, e.EventType, e.Outcome, e.UserID, e.ChatID, e.CardID, payload).Scan(
		&out.ID,
		&out.EventType,
		&out.Outcome,
		&out.UserID,
		&out.ChatID,
		&out.CardID,
		&out.Timestamp,
		&raw,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	out.Payload = raw
	return &out, nil
}

// ListRecent returns the newest events of a user in a chat.
func (r *EventRepository) ListRecent(ctx context.Context, key model.BalanceKey, limit int) ([]*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`

	rows, err := r.q.Query(ctx, query, key.UserID, key.ChatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var e model.Event
		var raw []byte
		if err := rows.Scan(&e.ID, &e.EventType, &e.Outcome, &e.UserID, &e.ChatID, &e.CardID, &e.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = raw
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CountByType counts a user's events of one type and outcome across chats.
func (r *EventRepository) CountByType(ctx context.Context, userID int64, eventType, outcome string) (int64, error) {
	const query = `SELECT COUNT(*) FROM events WHERE user_id = $1 AND event_type = $2 AND outcome = $3`

	var n int64
	if err := r.q.QueryRow(ctx, query, userID, eventType, outcome).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
