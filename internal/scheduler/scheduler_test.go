package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onyx-tools/onyx/internal/download"
)

func serveFixed(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(data)
	}
}

func newTask(url, dir, name string) *download.Task {
	return download.NewTask(url, filepath.Join(dir, name))
}

func TestBatchContinueOnError(t *testing.T) {
	data := []byte("payload bytes")
	server := httptest.NewServer(serveFixed(data))
	defer server.Close()

	dir := t.TempDir()
	tasks := []*download.Task{
		newTask(server.URL+"/a", dir, "a.bin"),
		newTask(server.URL+"/missing", dir, "b.bin"),
		newTask(server.URL+"/c", dir, "c.bin"),
	}

	summary := Run(context.Background(), Batch{
		Tasks:           tasks,
		Concurrency:     2,
		ContinueOnError: true,
	})

	require.Len(t, summary.Results, 3)
	require.Equal(t, download.ResultSuccess, summary.Results[0].Status)
	require.Equal(t, download.ResultFailed, summary.Results[1].Status)
	require.Equal(t, download.KindHTTPClient, summary.Results[1].Kind)
	require.Equal(t, download.ResultSuccess, summary.Results[2].Status)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.False(t, summary.Aborted)

	got, err := os.ReadFile(filepath.Join(dir, "a.bin"))
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestBatchAbortsOnFirstFailure(t *testing.T) {
	data := []byte("payload bytes")
	server := httptest.NewServer(serveFixed(data))
	defer server.Close()

	dir := t.TempDir()
	tasks := []*download.Task{
		newTask(server.URL+"/missing", dir, "a.bin"),
		newTask(server.URL+"/b", dir, "b.bin"),
		newTask(server.URL+"/c", dir, "c.bin"),
	}

	summary := Run(context.Background(), Batch{
		Tasks:           tasks,
		Concurrency:     1,
		ContinueOnError: false,
	})

	require.True(t, summary.Aborted)
	require.Len(t, summary.Results, 3, "a drained batch has one result per task")
	require.Equal(t, download.ResultFailed, summary.Results[0].Status)
	require.Equal(t, download.ResultAborted, summary.Results[1].Status)
	require.Equal(t, download.ResultAborted, summary.Results[2].Status)
}

func TestBatchHonorsConcurrencyLimit(t *testing.T) {
	data := []byte("payload bytes")
	var active, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			cur := active.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			defer active.Add(-1)
		}
		serveFixed(data)(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	var tasks []*download.Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, newTask(server.URL+"/f", dir, "f"+strconv.Itoa(i)+".bin"))
	}

	summary := Run(context.Background(), Batch{
		Tasks:           tasks,
		Concurrency:     2,
		ContinueOnError: true,
	})
	require.Equal(t, 6, summary.Succeeded)
	require.LessOrEqual(t, peak.Load(), int64(2),
		"at most concurrency-limit tasks may transfer at once")
}

func TestBatchResultCallbacks(t *testing.T) {
	data := []byte("payload bytes")
	server := httptest.NewServer(serveFixed(data))
	defer server.Close()

	dir := t.TempDir()
	tasks := []*download.Task{
		newTask(server.URL+"/a", dir, "a.bin"),
		newTask(server.URL+"/b", dir, "b.bin"),
	}

	var calls atomic.Int64
	summary := Run(context.Background(), Batch{
		Tasks:           tasks,
		Concurrency:     2,
		ContinueOnError: true,
		OnResult: func(index int, res download.Result) {
			calls.Add(1)
		},
	})
	require.Equal(t, int64(2), calls.Load())
	require.Equal(t, 2, summary.Succeeded)
}
