package artifacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medalign-labs/conformance/pkg/compliance"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	hash, err := store.Put(ctx, []byte("audit evidence"))
	require.NoError(t, err)
	require.Regexp(t, `^sha256:[0-9a-f]{64}$`, hash)

	data, err := store.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, []byte("audit evidence"), data)

	ok, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFileStorePutIdempotent(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, []byte("same content"))
	require.NoError(t, err)
	second, err := store.Put(ctx, []byte("same content"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFileStoreRejectsMalformedHash(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "md5:abc")
	require.Error(t, err)

	_, err = store.Get(ctx, "sha256:not-hex")
	require.Error(t, err)

	// Path traversal attempts never reach the filesystem.
	_, err = store.Get(ctx, "sha256:../../etc/passwd")
	require.Error(t, err)
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	hash, err := store.Put(ctx, []byte("ephemeral"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, hash))

	ok, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent blob is a no-op.
	require.NoError(t, store.Delete(ctx, hash))
}

func TestArchiveReportRoundTrip(t *testing.T) {
	archive := NewArchive(newTestFileStore(t))
	ctx := context.Background()

	report := &compliance.Report{
		ReportID:    "rep-1",
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Summary:     compliance.ReportSummary{TotalRequirements: 3},
		ContentHash: "sha256:abc",
	}

	hash, err := archive.SaveReport(ctx, report)
	require.NoError(t, err)
	require.NotEqual(t, report.ContentHash, hash)

	got, err := archive.LoadReport(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, report.ReportID, got.ReportID)
	require.Equal(t, 3, got.Summary.TotalRequirements)
}

func TestArchiveDocumentRoundTrip(t *testing.T) {
	archive := NewArchive(newTestFileStore(t))
	ctx := context.Background()

	hash, err := archive.SaveDocument(ctx, []byte("# SRS\n\nREQ-001 The system shall..."))
	require.NoError(t, err)

	data, err := archive.LoadDocument(ctx, hash)
	require.NoError(t, err)
	require.Contains(t, string(data), "REQ-001")
}
