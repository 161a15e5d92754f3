package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"gacha-bot/internal/config"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores images as <prefix>/<card_id>.jpg and <prefix>/thumbs/<card_id>.jpg.
type S3 struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 creates an S3 store. A custom endpoint switches to path-style
// addressing for S3-compatible services.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3(client s3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3) key(cardID int64, thumb bool) string {
	name := strconv.FormatInt(cardID, 10) + ".jpg"
	if thumb {
		return path.Join(s.prefix, "thumbs", name)
	}
	return path.Join(s.prefix, name)
}

// Image returns the full-size image.
func (s *S3) Image(ctx context.Context, cardID int64) ([]byte, error) {
	return s.get(ctx, s.key(cardID, false))
}

// Thumbnail returns the thumbnail, falling back to the full image.
func (s *S3) Thumbnail(ctx context.Context, cardID int64) ([]byte, error) {
	b, err := s.get(ctx, s.key(cardID, true))
	if errors.Is(err, ErrNotFound) {
		return s.Image(ctx, cardID)
	}
	return b, err
}

// Put uploads both images. An empty thumbnail is skipped.
func (s *S3) Put(ctx context.Context, cardID int64, image, thumbnail []byte) error {
	if err := s.put(ctx, s.key(cardID, false), image); err != nil {
		return err
	}
	if len(thumbnail) == 0 {
		return nil
	}
	return s.put(ctx, s.key(cardID, true), thumbnail)
}

func (s *S3) get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return b, nil
}

func (s *S3) put(ctx context.Context, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}
