package download

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOutputPathExplicitWins(t *testing.T) {
	info := ResourceInfo{SuggestedName: "server-name.bin"}
	got := ResolveOutputPath("my-file.bin", info, "https://example.com/other.bin")
	require.Equal(t, "my-file.bin", got)
}

func TestResolveOutputPathExplicitDirectory(t *testing.T) {
	dir := t.TempDir()
	info := ResourceInfo{SuggestedName: "report.pdf"}
	got := ResolveOutputPath(dir, info, "https://example.com/ignored")
	require.Equal(t, filepath.Join(dir, "report.pdf"), got)
}

func TestResolveOutputPathPrefersDisposition(t *testing.T) {
	info := ResourceInfo{SuggestedName: "from-header.tar.gz"}
	got := ResolveOutputPath("", info, "https://example.com/path/from-url.tar.gz")
	require.Equal(t, "from-header.tar.gz", got)
}

func TestResolveOutputPathFromURL(t *testing.T) {
	got := ResolveOutputPath("", ResourceInfo{}, "https://example.com/files/archive%20v2.zip?token=abc")
	require.Equal(t, "archive v2.zip", got)
}

func TestResolveOutputPathGeneratedFallback(t *testing.T) {
	got := ResolveOutputPath("", ResourceInfo{}, "https://example.com/")
	require.True(t, strings.HasPrefix(got, "download-"), "got %q", got)
}

func TestFilenameFromDisposition(t *testing.T) {
	require.Equal(t, "data.csv", filenameFromDisposition(`attachment; filename="data.csv"`))
	// Non-ASCII runes are sanitized away, matching the name policy elsewhere.
	require.Equal(t, "na_ve file.txt",
		filenameFromDisposition(`attachment; filename*=UTF-8''na%C3%AFve%20file.txt`))
	require.Equal(t, "", filenameFromDisposition(""))
}
