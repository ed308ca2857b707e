package download

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/onyx-tools/onyx/internal/utils"
)

const probeAttempts = 3

// ResourceInfo is what a metadata probe learns about a URL.
type ResourceInfo struct {
	Size          int64 // -1 when the server did not declare a length
	SupportsRange bool
	SuggestedName string
}

// Resolve probes url with a HEAD request (falling back to a one-byte ranged
// GET when HEAD is disallowed) to learn the resource size and whether byte
// ranges are supported. Connection failures are retried with backoff before
// surfacing.
func Resolve(ctx context.Context, rawURL string, client *utils.OnyxHTTPClient) (ResourceInfo, error) {
	var lastErr error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return ResourceInfo{}, wrapKind(KindAborted, ctx.Err())
			}
			log.Debug().Str("op", "download/range-resolver").Msgf("Retrying probe for %s (attempt %d/%d)", rawURL, attempt+1, probeAttempts)
		}
		info, err := probe(ctx, rawURL, client)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return ResourceInfo{}, err
		}
	}
	return ResourceInfo{}, lastErr
}

func probe(ctx context.Context, rawURL string, client *utils.OnyxHTTPClient) (ResourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ResourceInfo{}, wrapKind(KindHTTPClient, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ResourceInfo{}, wrapKind(KindNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		return probeWithRangedGet(ctx, rawURL, client)
	case resp.StatusCode >= 400:
		return ResourceInfo{}, statusError(resp.StatusCode)
	}

	info := ResourceInfo{
		Size:          -1,
		SupportsRange: strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
		SuggestedName: filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size >= 0 {
			info.Size = size
		}
	}
	return info, nil
}

// probeWithRangedGet asks for the first byte only; a 206 both confirms range
// support and reveals the total size via Content-Range.
func probeWithRangedGet(ctx context.Context, rawURL string, client *utils.OnyxHTTPClient) (ResourceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ResourceInfo{}, wrapKind(KindHTTPClient, err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return ResourceInfo{}, wrapKind(KindNetwork, err)
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	info := ResourceInfo{
		Size:          -1,
		SuggestedName: filenameFromDisposition(resp.Header.Get("Content-Disposition")),
	}
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		info.SupportsRange = true
		if total, ok := totalFromContentRange(resp.Header.Get("Content-Range")); ok {
			info.Size = total
		}
		return info, nil
	case resp.StatusCode == http.StatusOK:
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if size, err := strconv.ParseInt(cl, 10, 64); err == nil && size >= 0 {
				info.Size = size
			}
		}
		return info, nil
	case resp.StatusCode >= 400:
		return ResourceInfo{}, statusError(resp.StatusCode)
	}
	return ResourceInfo{}, wrapKind(KindNetwork, fmt.Errorf("probe got status %d", resp.StatusCode))
}

// totalFromContentRange parses the total size out of "bytes 0-0/12345".
func totalFromContentRange(header string) (int64, bool) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, false
	}
	total, err := strconv.ParseInt(header[idx+1:], 10, 64)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

// filenameFromDisposition extracts a usable file name from a
// Content-Disposition header. mime.ParseMediaType decodes RFC 5987
// filename* parameters into the plain filename key.
func filenameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	if fn, ok := params["filename"]; ok && fn != "" {
		return utils.SanitizeFilename(fn)
	}
	return ""
}
