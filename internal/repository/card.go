package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// Card errors.
var (
	ErrCardNotFound       = errors.New("card not found")
	ErrCardAlreadyClaimed = errors.New("card already claimed")
	ErrCardNotOwned       = errors.New("card not owned by user")
	ErrCardLocked         = errors.New("card is locked")
)

// CardRepository handles card persistence.
type CardRepository struct {
	q db.Querier
}

// NewCardRepository creates a new CardRepository instance.
func NewCardRepository(q db.Querier) *CardRepository {
	return &CardRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *CardRepository) WithTx(tx pgx.Tx) *CardRepository {
	return &CardRepository{q: tx}
}

const cardColumns = `id, base_name, modifier, rarity, owner, user_id, COALESCE(chat_id, ''),
	set_id, season_id, locked, description, created_at, updated_at`

func scanCard(row pgx.Row) (*model.Card, error) {
	var c model.Card
	err := row.Scan(
		&c.ID,
		&c.BaseName,
		&c.Modifier,
		&c.Rarity,
		&c.Owner,
		&c.UserID,
		&c.ChatID,
		&c.SetID,
		&c.SeasonID,
		&c.Locked,
		&c.Description,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCards(rows pgx.Rows) ([]*model.Card, error) {
	defer rows.Close()
	var cards []*model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// Create inserts an unclaimed card.
func (r *CardRepository) Create(ctx context.Context, c *model.Card) (*model.Card, error) {
	query := `
		INSERT INTO cards (base_name, modifier, rarity, chat_id, set_id, season_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + cardColumns

	card, err := scanCard(r.q.QueryRow(ctx, query,
		c.BaseName, c.Modifier, c.Rarity, c.ChatID, c.SetID, c.SeasonID, c.Description))
	if err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}
	return card, nil
}

// GetByID retrieves a card.
func (r *CardRepository) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	card, err := scanCard(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// Exists reports whether a card exists.
func (r *CardRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cards WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check card existence: %w", err)
	}
	return exists, nil
}

// ListByOwner returns all cards whose owner is username, across chats.
func (r *CardRepository) ListByOwner(ctx context.Context, username string) ([]*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE LOWER(owner) = LOWER($1)`

	rows, err := r.q.Query(ctx, query, trimAt(username))
	if err != nil {
		return nil, fmt.Errorf("failed to list cards by owner: %w", err)
	}
	return collectCards(rows)
}

// ListByUserChat returns a user's cards in one chat, newest first.
func (r *CardRepository) ListByUserChat(ctx context.Context, key model.BalanceKey) ([]*model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY id DESC`

	rows, err := r.q.Query(ctx, query, key.UserID, key.ChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return collectCards(rows)
}

// CountByUserChat counts a user's cards in one chat.
func (r *CardRepository) CountByUserChat(ctx context.Context, key model.BalanceKey) (int64, error) {
	const query = `SELECT COUNT(*) FROM cards WHERE user_id = $1 AND chat_id = $2`

	var n int64
	if err := r.q.QueryRow(ctx, query, key.UserID, key.ChatID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// Claim assigns an unowned card to a user.
func (r *CardRepository) Claim(ctx context.Context, cardID, userID int64, username string) (*model.Card, error) {
	query := `
		UPDATE cards SET owner = $3, user_id = $2, updated_at = NOW()
		WHERE id = $1 AND owner IS NULL AND user_id IS NULL
		RETURNING ` + cardColumns

	card, err := scanCard(r.q.QueryRow(ctx, query, cardID, userID, username))
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim card: %w", err)
	}
	exists, err := r.Exists(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrCardNotFound
	}
	return nil, ErrCardAlreadyClaimed
}

// SetLocked locks or unlocks a card owned by userID.
func (r *CardRepository) SetLocked(ctx context.Context, cardID, userID int64, locked bool) error {
	const query = `UPDATE cards SET locked = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`

	tag, err := r.q.Exec(ctx, query, cardID, userID, locked)
	if err != nil {
		return fmt.Errorf("failed to lock card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.ownershipError(ctx, cardID)
	}
	return nil
}

// Delete removes an unlocked card owned by userID.
func (r *CardRepository) Delete(ctx context.Context, cardID, userID int64) error {
	card, err := r.GetByID(ctx, cardID)
	if err != nil {
		return err
	}
	if card.UserID == nil || *card.UserID != userID {
		return ErrCardNotOwned
	}
	if card.Locked {
		return ErrCardLocked
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM cards WHERE id = $1`, cardID); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

func (r *CardRepository) ownershipError(ctx context.Context, cardID int64) error {
	exists, err := r.Exists(ctx, cardID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCardNotFound
	}
	return ErrCardNotOwned
}
