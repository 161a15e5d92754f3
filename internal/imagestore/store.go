// Package imagestore reads and writes card images. Images live either in the
// card_images table or in an S3-compatible bucket.
package imagestore

import (
	"context"
	"fmt"

	"gacha-bot/internal/config"
	"gacha-bot/internal/pkg/db"
	"gacha-bot/internal/repository"
)

// ErrNotFound is returned when a card has no stored image.
var ErrNotFound = repository.ErrImageNotFound

// Store holds full-size images and thumbnails by card id.
type Store interface {
	Image(ctx context.Context, cardID int64) ([]byte, error)
	Thumbnail(ctx context.Context, cardID int64) ([]byte, error)
	Put(ctx context.Context, cardID int64, image, thumbnail []byte) error
}

// New returns the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, q db.Querier) (Store, error) {
	switch cfg.Driver {
	case "", "postgres":
		return NewPostgres(q), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
