package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/model"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

//go:embed achievements.toml
var defaultCatalogue []byte

// ErrBadCatalogue is returned for catalogues with missing or duplicate slugs.
var ErrBadCatalogue = errors.New("invalid achievement catalogue")

// AchievementDef describes one achievement and the events that unlock it.
type AchievementDef struct {
	Slug        string `toml:"slug"`
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Icon        string `toml:"icon"`
	Event       string `toml:"event"`
	Outcome     string `toml:"outcome"`
	Threshold   int64  `toml:"threshold"`
}

type catalogue struct {
	Achievements []AchievementDef `toml:"achievement"`
}

// ParseCatalogue decodes a TOML achievement catalogue.
func ParseCatalogue(data []byte) ([]AchievementDef, error) {
	var c catalogue
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode achievement catalogue: %w", err)
	}

	seen := make(map[string]bool, len(c.Achievements))
	for i := range c.Achievements {
		d := &c.Achievements[i]
		if d.Slug == "" || d.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no slug or name", ErrBadCatalogue, i)
		}
		if seen[d.Slug] {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrBadCatalogue, d.Slug)
		}
		seen[d.Slug] = true
		if d.Threshold < 1 {
			d.Threshold = 1
		}
	}
	return c.Achievements, nil
}

// DefaultCatalogue returns the built-in achievements.
func DefaultCatalogue() []AchievementDef {
	defs, err := ParseCatalogue(defaultCatalogue)
	if err != nil {
		panic(err)
	}
	return defs
}

// AchievementService seeds the catalogue and unlocks achievements.
type AchievementService struct {
	db     db.TxBeginner
	repo   *repository.AchievementRepository
	events *repository.EventRepository
	defs   []AchievementDef

	mu  sync.RWMutex
	ids map[string]int64
}

// NewAchievementService creates an AchievementService for defs.
func NewAchievementService(pool db.Conn, defs []AchievementDef) *AchievementService {
	return &AchievementService{
		db:     pool,
		repo:   repository.NewAchievementRepository(pool),
		events: repository.NewEventRepository(pool),
		defs:   defs,
		ids:    make(map[string]int64, len(defs)),
	}
}

// Seed upserts every definition. It must run before CheckTx can unlock anything.
func (s *AchievementService) Seed(ctx context.Context) error {
	ids := make(map[string]int64, len(s.defs))
	for _, d := range s.defs {
		a, err := s.repo.Upsert(ctx, &model.Achievement{
			Slug:        d.Slug,
			Name:        d.Name,
			Description: d.Description,
			Icon:        d.Icon,
		})
		if err != nil {
			return err
		}
		ids[d.Slug] = a.ID
	}

	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()

	log.Info().Int("count", len(ids)).Msg("Achievements seeded")
	return nil
}

// CheckTx unlocks every achievement whose threshold the user now meets for
// eventType and outcome, and returns the ones unlocked by this call.
func (s *AchievementService) CheckTx(ctx context.Context, tx pgx.Tx, userID int64, eventType, outcome string) ([]*model.Achievement, error) {
	var candidates []AchievementDef
	for _, d := range s.defs {
		if d.Event == eventType && d.Outcome == outcome {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	count, err := s.events.WithTx(tx).CountByType(ctx, userID, eventType, outcome)
	if err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	var unlocked []*model.Achievement
	for _, d := range candidates {
		if count < d.Threshold {
			continue
		}
		s.mu.RLock()
		id, ok := s.ids[d.Slug]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		fresh, err := repo.Unlock(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if fresh {
			unlocked = append(unlocked, &model.Achievement{
				ID:          id,
				Slug:        d.Slug,
				Name:        d.Name,
				Description: d.Description,
				Icon:        d.Icon,
			})
			log.Info().Int64("user_id", userID).Str("achievement", d.Slug).Msg("Achievement unlocked")
		}
	}
	return unlocked, nil
}

// ListForUser returns the achievements a user unlocked.
func (s *AchievementService) ListForUser(ctx context.Context, userID int64) ([]*model.Achievement, error) {
	return s.repo.ListForUser(ctx, userID)
}
