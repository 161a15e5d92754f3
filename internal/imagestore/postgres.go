package imagestore

import (
	"context"

	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// Postgres stores images in the card_images table.
type Postgres struct {
	repo *repository.CardImageRepository
}

// NewPostgres creates a Postgres store.
func NewPostgres(q db.Querier) *Postgres {
	return &Postgres{repo: repository.NewCardImageRepository(q)}
}

// Image returns the full-size image.
func (p *Postgres) Image(ctx context.Context, cardID int64) ([]byte, error) {
	img, err := p.repo.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return img.Image, nil
}

// Thumbnail returns the thumbnail, falling back to the full image when none was derived.
func (p *Postgres) Thumbnail(ctx context.Context, cardID int64) ([]byte, error) {
	img, err := p.repo.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if len(img.Thumbnail) == 0 {
		return img.Image, nil
	}
	return img.Thumbnail, nil
}

// Put stores both images.
func (p *Postgres) Put(ctx context.Context, cardID int64, image, thumbnail []byte) error {
	return p.repo.Put(ctx, cardID, image, thumbnail)
}
