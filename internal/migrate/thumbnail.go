package migrate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	thumbnailQuality = 85
	thumbnailBatch   = 32
	thumbnailWorkers = 4
)

// ErrEmptyImage is returned when there is nothing to scale.
var ErrEmptyImage = errors.New("empty image")

// Thumbnail decodes img and re-encodes it as a JPEG scaled down by divisor
// on both axes. Each side is at least one pixel.
func Thumbnail(img []byte, divisor int) ([]byte, error) {
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}
	if divisor < 1 {
		return nil, fmt.Errorf("invalid thumbnail divisor %d", divisor)
	}

	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w := max(b.Dx()/divisor, 1)
	h := max(b.Dy()/divisor, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ThumbnailStats reports the outcome of a thumbnail backfill.
type ThumbnailStats struct {
	Processed int
	Failed    int
}

type thumbJob struct {
	cardID int64
	image  []byte
	thumb  []byte
	err    error
}

// RegenerateThumbnails re-derives every thumbnail in card_images at 1/divisor
// scale, overwriting previous values. Rows whose image cannot be decoded are
// logged and skipped; database errors abort the step.
func (s *Scope) RegenerateThumbnails(ctx context.Context, divisor int) (ThumbnailStats, error) {
	var stats ThumbnailStats

	ids, err := s.cardImageIDs(ctx)
	if err != nil {
		return stats, err
	}

	for start := 0; start < len(ids); start += thumbnailBatch {
		end := min(start+thumbnailBatch, len(ids))
		jobs, err := s.loadImages(ctx, ids[start:end])
		if err != nil {
			return stats, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(thumbnailWorkers)
		for i := range jobs {
			job := &jobs[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				job.thumb, job.err = Thumbnail(job.image, divisor)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}

		for _, job := range jobs {
			if job.err != nil {
				stats.Failed++
				log.Warn().Err(job.err).Int64("card_id", job.cardID).Msg("Skipping thumbnail")
				continue
			}
			if _, err := s.Exec(ctx, `UPDATE card_images SET thumbnail = $1 WHERE card_id = $2`, job.thumb, job.cardID); err != nil {
				return stats, err
			}
			stats.Processed++
		}
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Int("divisor", divisor).
		Msg("Thumbnails regenerated")
	return stats, nil
}

func (s *Scope) cardImageIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.Query(ctx, `SELECT card_id FROM card_images WHERE image IS NOT NULL ORDER BY card_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan card id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Scope) loadImages(ctx context.Context, ids []int64) ([]thumbJob, error) {
	jobs := make([]thumbJob, 0, len(ids))
	for _, id := range ids {
		var img []byte
		if err := s.QueryRow(ctx, `SELECT image FROM card_images WHERE card_id = $1`, id).Scan(&img); err != nil {
			return nil, fmt.Errorf("load image %d: %w", id, err)
		}
		jobs = append(jobs, thumbJob{cardID: id, image: img})
	}
	return jobs, nil
}
