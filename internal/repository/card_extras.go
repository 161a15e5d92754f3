package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// ErrImageNotFound is returned when a card has no stored image.
var ErrImageNotFound = errors.New("card image not found")

// CardImageRepository handles card_images.
type CardImageRepository struct {
	q db.Querier
}

// NewCardImageRepository creates a new CardImageRepository instance.
func NewCardImageRepository(q db.Querier) *CardImageRepository {
	return &CardImageRepository{q: q}
}

// Get returns the image and thumbnail for a card.
func (r *CardImageRepository) Get(ctx context.Context, cardID int64) (*model.CardImage, error) {
	const query = `SELECT card_id, image, thumbnail FROM card_images WHERE card_id = $1`

	var img model.CardImage
	err := r.q.QueryRow(ctx, query, cardID).Scan(&img.CardID, &img.Image, &img.Thumbnail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get card image: %w", err)
	}
	if img.Image == nil {
		return nil, ErrImageNotFound
	}
	return &img, nil
}

// Put stores or replaces a card's image and thumbnail.
func (r *CardImageRepository) Put(ctx context.Context, cardID int64, image, thumbnail []byte) error {
	const query = `
		INSERT INTO card_images (card_id, image, thumbnail)
		VALUES ($1, $2, $3)
		ON CONFLICT (card_id) DO UPDATE SET image = EXCLUDED.image, thumbnail = EXCLUDED.thumbnail
	`
	if _, err := r.q.Exec(ctx, query, cardID, image, thumbnail); err != nil {
		return fmt.Errorf("failed to store card image: %w", err)
	}
	return nil
}

// RolledCardRepository tracks roll provenance.
type RolledCardRepository struct {
	q db.Querier
}

// NewRolledCardRepository creates a new RolledCardRepository instance.
func NewRolledCardRepository(q db.Querier) *RolledCardRepository {
	return &RolledCardRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *RolledCardRepository) WithTx(tx pgx.Tx) *RolledCardRepository {
	return &RolledCardRepository{q: tx}
}

const rolledCardColumns = `roll_id, original_card_id, rerolled_card_id, COALESCE(original_roller_id, 0),
	rerolled, being_rerolled, attempted_by, is_locked, created_at`

func scanRolledCard(row pgx.Row) (*model.RolledCard, error) {
	var rc model.RolledCard
	err := row.Scan(
		&rc.RollID,
		&rc.OriginalCardID,
		&rc.RerolledCardID,
		&rc.OriginalRollerID,
		&rc.Rerolled,
		&rc.BeingRerolled,
		&rc.AttemptedBy,
		&rc.IsLocked,
		&rc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// Create records a fresh roll. The rerolled card starts as the original.
func (r *RolledCardRepository) Create(ctx context.Context, cardID, rollerID int64) (*model.RolledCard, error) {
	query := `
		INSERT INTO rolled_cards (original_card_id, rerolled_card_id, original_roller_id)
		VALUES ($1, $1, $2)
		RETURNING ` + rolledCardColumns

	rc, err := scanRolledCard(r.q.QueryRow(ctx, query, cardID, rollerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create rolled card: %w", err)
	}
	return rc, nil
}

// GetByCard returns the roll the card currently stands for.
func (r *RolledCardRepository) GetByCard(ctx context.Context, cardID int64) (*model.RolledCard, error) {
	query := `SELECT ` + rolledCardColumns + ` FROM rolled_cards
		WHERE rerolled_card_id = $1 OR original_card_id = $1
		ORDER BY roll_id DESC LIMIT 1`

	rc, err := scanRolledCard(r.q.QueryRow(ctx, query, cardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get rolled card: %w", err)
	}
	return rc, nil
}

// MarkAttempted records that username tried to claim the roll.
func (r *RolledCardRepository) MarkAttempted(ctx context.Context, rollID int64, username string) error {
	const query = `
		UPDATE rolled_cards
		SET attempted_by = CASE
			WHEN attempted_by IS NULL OR attempted_by = '' THEN $2
			ELSE attempted_by || ',' || $2
		END
		WHERE roll_id = $1`
	if _, err := r.q.Exec(ctx, query, rollID, username); err != nil {
		return fmt.Errorf("failed to mark roll attempted: %w", err)
	}
	return nil
}

// ModifierCountRepository maintains the running modifier counts.
type ModifierCountRepository struct {
	q db.Querier
}

// NewModifierCountRepository creates a new ModifierCountRepository instance.
func NewModifierCountRepository(q db.Querier) *ModifierCountRepository {
	return &ModifierCountRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *ModifierCountRepository) WithTx(tx pgx.Tx) *ModifierCountRepository {
	return &ModifierCountRepository{q: tx}
}

// Increment adds one to the counter for a modifier.
func (r *ModifierCountRepository) Increment(ctx context.Context, chatID string, seasonID int64, modifier string) error {
	const query = `
		INSERT INTO modifier_counts (chat_id, season_id, modifier, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (chat_id, season_id, modifier)
		DO UPDATE SET count = modifier_counts.count + 1
	`
	if _, err := r.q.Exec(ctx, query, chatID, seasonID, modifier); err != nil {
		return fmt.Errorf("failed to increment modifier count: %w", err)
	}
	return nil
}

// List returns the counts of a chat in a season, most frequent first.
func (r *ModifierCountRepository) List(ctx context.Context, chatID string, seasonID int64) ([]model.ModifierCount, error) {
	const query = `
		SELECT chat_id, season_id, modifier, count FROM modifier_counts
		WHERE chat_id = $1 AND season_id = $2
		ORDER BY count DESC, modifier
	`
	rows, err := r.q.Query(ctx, query, chatID, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list modifier counts: %w", err)
	}
	defer rows.Close()

	var out []model.ModifierCount
	for rows.Next() {
		var mc model.ModifierCount
		if err := rows.Scan(&mc.ChatID, &mc.SeasonID, &mc.Modifier, &mc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan modifier count: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}
