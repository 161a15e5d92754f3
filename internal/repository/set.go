package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
)

// Set errors.
var (
	ErrSetNotFound = errors.New("set not found")
	ErrSetExists   = errors.New("set already exists")
)

// SetRepository handles sets.
type SetRepository struct {
	q db.Querier
}

// NewSetRepository creates a new SetRepository instance.
func NewSetRepository(q db.Querier) *SetRepository {
	return &SetRepository{q: q}
}

const setColumns = `id, season_id, name, source, description, active`

func scanSet(row pgx.Row) (*model.Set, error) {
	var s model.Set
	if err := row.Scan(&s.ID, &s.SeasonID, &s.Name, &s.Source, &s.Description, &s.Active); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns sets, optionally restricted to one season.
func (r *SetRepository) List(ctx context.Context, seasonID *int64) ([]*model.Set, error) {
	query := `SELECT ` + setColumns + ` FROM sets
		WHERE $1::int IS NULL OR season_id = $1
		ORDER BY season_id, id`

	rows, err := r.q.Query(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets: %w", err)
	}
	defer rows.Close()

	var sets []*model.Set
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set: %w", err)
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// Get returns one set.
func (r *SetRepository) Get(ctx context.Context, seasonID, setID int64) (*model.Set, error) {
	query := `SELECT ` + setColumns + ` FROM sets WHERE season_id = $1 AND id = $2`

	s, err := scanSet(r.q.QueryRow(ctx, query, seasonID, setID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to get set: %w", err)
	}
	return s, nil
}

// Create inserts a set.
func (r *SetRepository) Create(ctx context.Context, s *model.Set) (*model.Set, error) {
	query := `
		INSERT INTO sets (id, season_id, name, source, description, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + setColumns

	created, err := scanSet(r.q.QueryRow(ctx, query, s.ID, s.SeasonID, s.Name, s.Source, s.Description, s.Active))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSetExists
		}
		return nil, fmt.Errorf("failed to create set: %w", err)
	}
	return created, nil
}

// Update replaces the mutable fields of a set.
func (r *SetRepository) Update(ctx context.Context, s *model.Set) (*model.Set, error) {
	query := `
		UPDATE sets SET name = $3, source = $4, description = $5, active = $6
		WHERE season_id = $1 AND id = $2
		RETURNING ` + setColumns

	updated, err := scanSet(r.q.QueryRow(ctx, query, s.SeasonID, s.ID, s.Name, s.Source, s.Description, s.Active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSetNotFound
		}
		return nil, fmt.Errorf("failed to update set: %w", err)
	}
	return updated, nil
}

// ActiveForSeason returns the active sets of a season.
func (r *SetRepository) ActiveForSeason(ctx context.Context, seasonID int64) ([]*model.Set, error) {
	sets, err := r.List(ctx, &seasonID)
	if err != nil {
		return nil, err
	}
	active := sets[:0]
	for _, s := range sets {
		if s.Active {
			active = append(active, s)
		}
	}
	return active, nil
}
