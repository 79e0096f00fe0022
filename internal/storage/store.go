// Package storage resolves document keys to bytes and issues signed upload
// URLs for new documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no document exists under the key.
	ErrNotFound = errors.New("document not found")

	// ErrTooLarge is returned when a document exceeds the configured size.
	ErrTooLarge = errors.New("document exceeds maximum size")

	// ErrInvalidKey is returned for keys that are empty or escape the store.
	ErrInvalidKey = errors.New("invalid document key")

	// ErrPresignUnsupported is returned by stores that cannot sign uploads.
	ErrPresignUnsupported = errors.New("store does not support signed uploads")
)

// UploadPrefix is where signed uploads are written.
const UploadPrefix = "uploads/"

// Store fetches raw documents by key.
type Store interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Upload is a signed URL together with the key the client will upload to.
type Upload struct {
	URL       string    `json:"presignedUrl"`
	Key       string    `json:"s3Key"`
	ExpiresAt time.Time `json:"-"`
}

// Presigner issues time-limited upload URLs.
type Presigner interface {
	PresignUpload(ctx context.Context, fileName, contentType string) (Upload, error)
}

// NewUploadKey builds "uploads/<unix-ms>-<8 chars>-<file name>". Directory
// components of fileName are dropped.
func NewUploadKey(now time.Time, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return fmt.Sprintf("%s%d-%s-%s", UploadPrefix, now.UnixMilli(), randomSuffix(), name)
}

func randomSuffix() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%08x", rand.Uint32())
	}
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}

// NotFound reports whether err means the document does not exist.
func NotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
