package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// ErrThreadNotSet is returned when a chat has no thread bound for a type.
var ErrThreadNotSet = errors.New("thread not set")

// ChatRepository handles chats, their threads and their characters.
type ChatRepository struct {
	q db.Querier
}

// NewChatRepository creates a new ChatRepository instance.
func NewChatRepository(q db.Querier) *ChatRepository {
	return &ChatRepository{q: q}
}

// Ensure registers a chat, refreshing its title when one is given.
func (r *ChatRepository) Ensure(ctx context.Context, chatID, title string) error {
	const query = `
		INSERT INTO chats (chat_id, title) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE
		SET title = CASE WHEN EXCLUDED.title = '' THEN chats.title ELSE EXCLUDED.title END
	`
	if _, err := r.q.Exec(ctx, query, chatID, title); err != nil {
		return fmt.Errorf("failed to ensure chat: %w", err)
	}
	return nil
}

// SetThread binds a message thread of a chat to a type. There is one thread per (chat, type).
func (r *ChatRepository) SetThread(ctx context.Context, chatID string, threadType string, threadID int64) error {
	const query = `
		INSERT INTO threads (chat_id, type, thread_id) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, type) DO UPDATE SET thread_id = EXCLUDED.thread_id
	`
	if _, err := r.q.Exec(ctx, query, chatID, threadType, threadID); err != nil {
		return fmt.Errorf("failed to set thread: %w", err)
	}
	return nil
}

// GetThread returns the thread bound to a type.
func (r *ChatRepository) GetThread(ctx context.Context, chatID, threadType string) (*model.Thread, error) {
	const query = `SELECT chat_id, thread_id, type FROM threads WHERE chat_id = $1 AND type = $2`

	var t model.Thread
	err := r.q.QueryRow(ctx, query, chatID, threadType).Scan(&t.ChatID, &t.ThreadID, &t.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotSet
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

// Characters returns the characters cards of a chat are rolled from.
func (r *ChatRepository) Characters(ctx context.Context, chatID string) ([]*model.Character, error) {
	const query = `SELECT id, chat_id, name, imageb64 FROM characters WHERE chat_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var out []*model.Character
	for rows.Next() {
		var c model.Character
		if err := rows.Scan(&c.ID, &c.ChatID, &c.Name, &c.ImageB64); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// AddCharacter stores a character for a chat.
func (r *ChatRepository) AddCharacter(ctx context.Context, chatID, name, imageB64 string) (*model.Character, error) {
	const query = `
		INSERT INTO characters (chat_id, name, imageb64) VALUES ($1, $2, $3)
		RETURNING id, chat_id, name, imageb64
	`
	var c model.Character
	if err := r.q.QueryRow(ctx, query, chatID, name, imageB64).Scan(&c.ID, &c.ChatID, &c.Name, &c.ImageB64); err != nil {
		return nil, fmt.Errorf("failed to add character: %w", err)
	}
	return &c, nil
}
