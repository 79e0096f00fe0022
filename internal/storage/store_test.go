package storage

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "a.pdf"), []byte("%PDF-1.4"), 0o644))

	store, err := NewLocalStore(dir, 1024)
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestLocalStoreMissingKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "uploads/missing.pdf")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, NotFound(err))
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "uploads/../../secret", "."} {
		_, err := store.Fetch(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalStoreRejectsSymlinksLeavingRoot(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(secret, []byte("%PDF-1.4 secret"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	if err := os.Symlink(secret, filepath.Join(dir, "uploads", "link.pdf")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "shared")))

	store, err := NewLocalStore(dir, 0)
	require.NoError(t, err)

	for _, key := range []string{"uploads/link.pdf", "shared/secret.pdf"} {
		data, err := store.Fetch(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.Nil(t, data, key)
	}
}

func TestLocalStoreFollowsSymlinksInsideRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF-1.4"), 0o644))
	if err := os.Symlink(filepath.Join(dir, "a.pdf"), filepath.Join(dir, "alias.pdf")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	store, err := NewLocalStore(dir, 0)
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), "alias.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestLocalStoreEnforcesMaxBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.pdf"), make([]byte, 64), 0o644))

	store, err := NewLocalStore(dir, 32)
	require.NoError(t, err)

	_, err = store.Fetch(context.Background(), "big.pdf")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestNewUploadKey(t *testing.T) {
	now := time.UnixMilli(1732874400123)
	pattern := regexp.MustCompile(`^uploads/1732874400123-[0-9a-f]{8}-factura\.pdf$`)

	assert.Regexp(t, pattern, NewUploadKey(now, "factura.pdf"))
	assert.Regexp(t, pattern, NewUploadKey(now, "../../factura.pdf"))
	assert.Regexp(t, pattern, NewUploadKey(now, `C:\tmp\factura.pdf`))
	assert.NotEqual(t, NewUploadKey(now, "factura.pdf"), NewUploadKey(now, "factura.pdf"))
}
