package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// ErrAchievementNotFound is returned for unknown achievement slugs.
var ErrAchievementNotFound = errors.New("achievement not found")

// AchievementRepository handles achievements and unlocks.
type AchievementRepository struct {
	q db.Querier
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(q db.Querier) *AchievementRepository {
	return &AchievementRepository{q: q}
}

// WithTx returns a copy bound to tx.
func (r *AchievementRepository) WithTx(tx pgx.Tx) *AchievementRepository {
	return &AchievementRepository{q: tx}
}

// Upsert creates or refreshes an achievement definition by slug.
func (r *AchievementRepository) Upsert(ctx context.Context, a *model.Achievement) (*model.Achievement, error) {
	const query = `
		INSERT INTO achievements (slug, name, description, icon_b64)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, icon_b64 = EXCLUDED.icon_b64
		RETURNING id, slug, name, description, COALESCE(icon_b64, '')
	`
	var out model.Achievement
	err := r.q.QueryRow(ctx, query, a.Slug, a.Name, a.Description, a.Icon).
		Scan(&out.ID, &out.Slug, &out.Name, &out.Description, &out.Icon)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert achievement: %w", err)
	}
	return &out, nil
}

// GetBySlug returns one achievement.
func (r *AchievementRepository) GetBySlug(ctx context.Context, slug string) (*model.Achievement, error) {
	const query = `SELECT id, slug, name, description, COALESCE(icon_b64, '') FROM achievements WHERE slug = $1`

	var a model.Achievement
	err := r.q.QueryRow(ctx, query, slug).Scan(&a.ID, &a.Slug, &a.Name, &a.Description, &a.Icon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAchievementNotFound
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return &a, nil
}

// Unlock records an unlock. It reports false when the user already had it.
func (r *AchievementRepository) Unlock(ctx context.Context, userID, achievementID int64) (bool, error) {
	const query = `
		INSERT INTO user_achievements (user_id, achievement_id) VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	tag, err := r.q.Exec(ctx, query, userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListForUser returns the achievements a user unlocked, oldest first.
func (r *AchievementRepository) ListForUser(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	const query = `
		SELECT a.id, a.slug, a.name, a.description, COALESCE(a.icon_b64, '')
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = $1
		ORDER BY ua.unlocked_at, a.id
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	out := []*model.Achievement{}
	for rows.Next() {
		var a model.Achievement
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Description, &a.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
