package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onyx-tools/onyx/internal/utils"
)

func testClient() *utils.OnyxHTTPClient {
	return utils.NewOnyxHTTPClient(utils.HTTPClientConfig{})
}

func TestResolveHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Disposition", `attachment; filename="asset.bin"`)
	}))
	defer server.Close()

	info, err := Resolve(context.Background(), server.URL, testClient())
	require.NoError(t, err)
	require.Equal(t, int64(4096), info.Size)
	require.True(t, info.SupportsRange)
	require.Equal(t, "asset.bin", info.SuggestedName)
}

func TestResolveFallsBackToRangedGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		require.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-0/9000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0})
	}))
	defer server.Close()

	info, err := Resolve(context.Background(), server.URL, testClient())
	require.NoError(t, err)
	require.Equal(t, int64(9000), info.Size)
	require.True(t, info.SupportsRange)
}

func TestResolveUnknownSizeWithoutRanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "hi")
	}))
	defer server.Close()

	info, err := Resolve(context.Background(), server.URL, testClient())
	require.NoError(t, err)
	require.False(t, info.SupportsRange)
}

func TestResolveNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Resolve(context.Background(), server.URL, testClient())
	require.Error(t, err)
	require.Equal(t, KindHTTPClient, KindOf(err))
}

func TestTotalFromContentRange(t *testing.T) {
	total, ok := totalFromContentRange("bytes 0-0/12345")
	require.True(t, ok)
	require.Equal(t, int64(12345), total)

	_, ok = totalFromContentRange("bytes 0-0/*")
	require.False(t, ok)
	_, ok = totalFromContentRange("")
	require.False(t, ok)
}
