package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resourcehub/internal/pkg/signer"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	b, err := NewLocalBackend(t.TempDir(), signer.New("test-secret"), "http://localhost:8080", 60)
	require.NoError(t, err)
	return b
}

func TestLocalStore_HashAndSize(t *testing.T) {
	b := newTestBackend(t)
	payload := []byte("hello resource platform")

	size, hash, err := b.Store(context.Background(), "file_abc", "notes.pdf", bytes.NewReader(payload), 1024)
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), size)
	want := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(want[:]), hash)

	rc, err := b.Open(context.Background(), "file_abc", "notes.pdf")
	require.NoError(t, err)
	defer rc.Close()
	stored, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestLocalStore_TooLargeLeavesNothingBehind(t *testing.T) {
	dir := t.TempDir()
	b, err := NewLocalBackend(dir, signer.New("test-secret"), "http://localhost:8080", 60)
	require.NoError(t, err)

	// one byte over the limit
	payload := bytes.Repeat([]byte("x"), 101)
	_, _, err = b.Store(context.Background(), "file_big", "big.bin", bytes.NewReader(payload), 100)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial write must be removed")
}

func TestLocalStore_ExactLimitSucceeds(t *testing.T) {
	b := newTestBackend(t)
	payload := bytes.Repeat([]byte("x"), 100)

	size, _, err := b.Store(context.Background(), "file_fit", "fit.bin", bytes.NewReader(payload), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), size)
}

func TestLocalDownloadURL_SignatureVerifies(t *testing.T) {
	sig := signer.New("test-secret")
	b, err := NewLocalBackend(t.TempDir(), sig, "http://localhost:8080", 60)
	require.NoError(t, err)

	raw, err := b.DownloadURL(context.Background(), "file_abc", "notes.pdf", false, "42")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/api/v1/files/signed/file_abc"))
	assert.Equal(t, "42", u.Query().Get("uid"))

	expTS, err := strconv.ParseInt(u.Query().Get("exp"), 10, 64)
	require.NoError(t, err)
	assert.True(t, sig.Verify("file_abc", expTS, u.Query().Get("sig"), "42"))
}

func TestLocalDownloadURL_InlineFlag(t *testing.T) {
	b := newTestBackend(t)

	raw, err := b.DownloadURL(context.Background(), "file_abc", "notes.pdf", true, "")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("inline"))
	assert.Empty(t, u.Query().Get("uid"))
}

func TestLocalMaterialize_ReturnsStoredPath(t *testing.T) {
	b := newTestBackend(t)
	_, _, err := b.Store(context.Background(), "file_abc", "notes.pdf", strings.NewReader("data"), 100)
	require.NoError(t, err)

	path, cleanup, err := b.MaterializeLocal(context.Background(), "file_abc", "notes.pdf")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, ObjectKey("file_abc", "notes.pdf"), filepath.Base(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)

	// local cleanup must not remove the stored file
	cleanup()
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLocalMaterialize_MissingFile(t *testing.T) {
	b := newTestBackend(t)
	_, _, err := b.MaterializeLocal(context.Background(), "file_missing", "x.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeFilename("a/b\\c"))
	assert.Equal(t, "_etc_passwd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "file", SanitizeFilename("   "))
	assert.Equal(t, "notes.pdf", SanitizeFilename("notes.pdf"))
}

func TestObjectKey_NamespacedByFileID(t *testing.T) {
	a := ObjectKey(NewFileID(), "same.pdf")
	b := ObjectKey(NewFileID(), "same.pdf")
	assert.NotEqual(t, a, b)
}
