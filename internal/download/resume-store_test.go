package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResumeStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "file.bin")
	url := "https://example.com/file.bin"
	size := 4 * MinChunkSize

	chunks := PlanChunks(size, 4)
	store, err := NewResumeStore(url, out, size, 4, "sha256", chunks)
	require.NoError(t, err)

	// Progress on chunk 1, then an interruption mid-chunk.
	done := chunks[0]
	done.Downloaded = done.Size()
	done.Status = ChunkComplete
	store.MarkComplete(&done)
	c := chunks[1]
	c.Downloaded = 1234
	c.Status = ChunkActive
	store.Update(&c)
	store.Flush()

	loaded, ok := LoadResumeStore(url, out, size, 4)
	require.True(t, ok)
	got := loaded.Chunks()
	require.Len(t, got, 4)
	require.Equal(t, ChunkComplete, got[0].Status)
	require.Equal(t, int64(1234), got[1].Downloaded)
	require.Equal(t, ChunkPending, got[1].Status, "interrupted chunks reload as pending")
}

func TestResumeStoreMonotonicMerge(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "file.bin")
	url := "https://example.com/file.bin"
	size := 2 * MinChunkSize

	chunks := PlanChunks(size, 2)
	store, err := NewResumeStore(url, out, size, 2, "", chunks)
	require.NoError(t, err)

	c := chunks[0]
	c.Downloaded = 5000
	store.Update(&c)
	c.Downloaded = 100 // stale update must not roll progress back
	store.Update(&c)
	store.Flush()

	loaded, ok := LoadResumeStore(url, out, size, 2)
	require.True(t, ok)
	require.Equal(t, int64(5000), loaded.Chunks()[0].Downloaded)
}

func TestResumeStoreRejectsChangedPlan(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "file.bin")
	url := "https://example.com/file.bin"
	size := 4 * MinChunkSize

	chunks := PlanChunks(size, 4)
	store, err := NewResumeStore(url, out, size, 4, "", chunks)
	require.NoError(t, err)
	store.Flush()

	// Different worker count: resume is rejected, not reinterpreted.
	_, ok := LoadResumeStore(url, out, size, 8)
	require.False(t, ok)
	_, err = os.Stat(ResumeRecordPath(url, out))
	require.True(t, os.IsNotExist(err), "incompatible record is discarded")
}

func TestResumeStoreRejectsChangedSize(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "file.bin")
	url := "https://example.com/file.bin"
	size := 4 * MinChunkSize

	chunks := PlanChunks(size, 4)
	_, err := NewResumeStore(url, out, size, 4, "", chunks)
	require.NoError(t, err)

	_, ok := LoadResumeStore(url, out, size+1, 4)
	require.False(t, ok)
}

func TestResumeStoreDeleteRemovesEmptyTempDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "file.bin")
	url := "https://example.com/file.bin"
	size := MinChunkSize

	chunks := PlanChunks(size, 1)
	store, err := NewResumeStore(url, out, size, 1, "", chunks)
	require.NoError(t, err)

	store.Delete()
	_, err = os.Stat(filepath.Join(dir, TempDirName))
	require.True(t, os.IsNotExist(err))
}
