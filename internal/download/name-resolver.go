package download

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/onyx-tools/onyx/internal/utils"
)

// ResolveOutputPath picks the destination file name. An explicit file path
// wins; an explicit directory is joined with the detected name. Detection
// prefers the server-provided Content-Disposition name, then the URL's last
// path segment, then a generated fallback.
func ResolveOutputPath(explicit string, info ResourceInfo, rawURL string) string {
	if explicit != "" {
		if fi, err := os.Stat(explicit); err == nil && fi.IsDir() {
			return filepath.Join(explicit, detectFilename(info, rawURL))
		}
		return explicit
	}
	return detectFilename(info, rawURL)
}

func detectFilename(info ResourceInfo, rawURL string) string {
	if info.SuggestedName != "" {
		return info.SuggestedName
	}
	if name := filenameFromURL(rawURL); name != "" {
		return name
	}
	return fmt.Sprintf("download-%s", uuid.NewString()[:8])
}

func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := parsed.Path[strings.LastIndex(parsed.Path, "/")+1:]
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	return utils.SanitizeFilename(segment)
}
