package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	n, err := ParseSize("1KiB")
	require.NoError(t, err)
	require.Equal(t, int64(1024), n)

	n, err = ParseSize("100MB")
	require.NoError(t, err)
	require.Equal(t, int64(100*1000*1000), n)

	n, err = ParseSize("")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = ParseSize("lots")
	require.Error(t, err)
}

func TestRenewOutputPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	renewed := RenewOutputPath(path)
	require.Equal(t, filepath.Join(dir, "report-(1).pdf"), renewed)

	require.NoError(t, os.WriteFile(renewed, []byte("x"), 0644))
	require.Equal(t, filepath.Join(dir, "report-(2).pdf"), RenewOutputPath(path))
}

func TestParseHeaderArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{"Authorization: Bearer abc", "X-Thing:1", "malformed"})
	require.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"X-Thing":       "1",
	}, headers)
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "some file_1.txt", SanitizeFilename("some file?1.txt"))
	require.Equal(t, "trimmed", SanitizeFilename(" trimmed. "))
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", FormatBytes(512))
	require.Equal(t, "1.00 KB", FormatBytes(1024))
	require.Equal(t, "2.50 MB", FormatBytes(uint64(2.5*1024*1024)))
}
