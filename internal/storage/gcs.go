package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"invoiceapi/internal/logger"
)

// GCSConfig configures the Cloud Storage backend.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // path to a service account JSON file
	CredentialsJSON string // inline service account JSON
	MaxBytes        int64
	PresignTTL      time.Duration
}

// GCSStore reads documents from, and signs uploads to, one bucket.
type GCSStore struct {
	client *storage.Client
	config GCSConfig
	now    func() time.Time
	log    zerolog.Logger
}

// NewGCSStore creates the storage client. Without explicit credentials the
// application default credentials are used.
func NewGCSStore(ctx context.Context, config GCSConfig) (*GCSStore, error) {
	const op = "NewGCSStore"

	if config.Bucket == "" {
		return nil, fmt.Errorf("%s: BUCKET_NAME is required", op)
	}

	var opts []option.ClientOption
	switch {
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	case config.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create storage client: %w", op, err)
	}

	return &GCSStore{
		client: client,
		config: config,
		now:    time.Now,
		log:    logger.WithComponent("storage-gcs"),
	}, nil
}

// Fetch downloads the object stored under key.
func (s *GCSStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	const op = "GCSStore.Fetch"

	if key == "" {
		return nil, ErrInvalidKey
	}

	obj := s.client.Bucket(s.config.Bucket).Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%s: gs://%s/%s: %w", op, s.config.Bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: failed to open gs://%s/%s: %w", op, s.config.Bucket, key, err)
	}
	defer reader.Close()

	if s.config.MaxBytes > 0 && reader.Attrs.Size > s.config.MaxBytes {
		return nil, fmt.Errorf("%s: %d bytes: %w", op, reader.Attrs.Size, ErrTooLarge)
	}

	data, err := readLimited(reader, s.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read gs://%s/%s: %w", op, s.config.Bucket, key, err)
	}

	s.log.Debug().
		Str("bucket", s.config.Bucket).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Document downloaded")

	return data, nil
}

// PresignUpload signs a V4 PUT URL for a new upload key.
func (s *GCSStore) PresignUpload(ctx context.Context, fileName, contentType string) (Upload, error) {
	const op = "GCSStore.PresignUpload"

	now := s.now()
	key := NewUploadKey(now, fileName)
	expires := now.Add(s.config.PresignTTL)

	url, err := s.client.Bucket(s.config.Bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		ContentType: contentType,
		Expires:     expires,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("%s: failed to sign upload URL: %w", op, err)
	}

	s.log.Info().
		Str("bucket", s.config.Bucket).
		Str("key", key).
		Time("expires_at", expires).
		Msg("Signed upload URL issued")

	return Upload{URL: url, Key: key, ExpiresAt: expires}, nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}
