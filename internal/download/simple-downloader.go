package download

import (
	"context"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/onyx-tools/onyx/internal/utils"
)

// simpleDownloader streams the whole resource over one connection. Used when
// the server does not honor ranges, the size is unknown, or the plan
// collapses to a single chunk-less transfer. When a checksum is expected and
// the stream runs uninterrupted from offset zero, the digest is computed on
// the fly; otherwise verification re-reads the file.
type simpleDownloader struct {
	task   *Task
	client *utils.OnyxHTTPClient
	file   *os.File
	size   int64 // -1 when unknown
	chunk  Chunk
	hasher hash.Hash
	hashOK bool
}

func newSimpleDownloader(task *Task, client *utils.OnyxHTTPClient, file *os.File, size int64) *simpleDownloader {
	d := &simpleDownloader{
		task:   task,
		client: client,
		file:   file,
		size:   size,
		chunk:  Chunk{Status: ChunkPending, Start: 0, End: size},
	}
	if task.Checksum != nil {
		d.hasher = task.Checksum.newHash()
		d.hashOK = true
	}
	return d
}

func (d *simpleDownloader) progress(n int64) {
	if d.task.Progress != nil {
		d.task.Progress.Add(n)
	}
}

func (d *simpleDownloader) run(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			d.chunk.Retries++
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return wrapKind(KindAborted, ctx.Err())
			}
			log.Warn().Str("op", "download/simple-downloader").Msgf("Retrying download for %s (attempt %d/%d)", d.task.OutputPath, attempt+1, maxRetries)
		}
		err := d.attempt(ctx)
		if err == nil {
			d.chunk.Status = ChunkComplete
			return nil
		}
		if KindOf(err) == KindAborted || !IsRetryable(err) {
			d.chunk.Status = ChunkFailed
			return err
		}
		lastErr = err
	}
	d.chunk.Status = ChunkFailed
	return lastErr
}

func (d *simpleDownloader) attempt(ctx context.Context) error {
	offset := d.chunk.Downloaded
	if offset > 0 {
		// A retry that does not restart at zero invalidates the running digest.
		d.hashOK = false
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(idleTimeout, cancel)
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, d.task.URL, nil)
	if err != nil {
		return wrapKind(KindHTTPClient, err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return wrapKind(KindAborted, ctx.Err())
		}
		return wrapKind(KindNetwork, err)
	}
	defer resp.Body.Close()

	if offset > 0 {
		switch resp.StatusCode {
		case http.StatusPartialContent:
		case http.StatusOK:
			// Server ignored the range: restart from scratch.
			log.Warn().Str("op", "download/simple-downloader").Msgf("Server does not support resume (status %d), restarting %s", resp.StatusCode, d.task.OutputPath)
			d.progress(-offset)
			d.chunk.Downloaded = 0
			offset = 0
		default:
			return statusError(resp.StatusCode)
		}
	} else if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return statusError(resp.StatusCode)
	}

	// Size declared only on the GET (no usable HEAD): enforce the limit
	// before the first byte is written.
	if offset == 0 && d.task.MaxSize > 0 && resp.ContentLength > d.task.MaxSize {
		return wrapKind(KindSizeLimit, fmt.Errorf("declared size %s exceeds limit %s",
			utils.FormatBytes(uint64(resp.ContentLength)), utils.FormatBytes(uint64(d.task.MaxSize))))
	}

	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			watchdog.Reset(idleTimeout)
			if d.task.MaxSize > 0 && d.chunk.Downloaded+int64(bytesRead) > d.task.MaxSize {
				return wrapKind(KindSizeLimit, fmt.Errorf("stream exceeds limit %s", utils.FormatBytes(uint64(d.task.MaxSize))))
			}
			if _, writeErr := d.file.WriteAt(buffer[:bytesRead], d.chunk.Downloaded); writeErr != nil {
				return wrapKind(KindDisk, writeErr)
			}
			if d.hashOK {
				d.hasher.Write(buffer[:bytesRead])
			}
			d.chunk.Downloaded += int64(bytesRead)
			d.progress(int64(bytesRead))
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			if ctx.Err() != nil {
				return wrapKind(KindAborted, ctx.Err())
			}
			return wrapKind(KindNetwork, readErr)
		}
	}
	if d.size >= 0 && d.chunk.Downloaded != d.size {
		return wrapKind(KindNetwork, fmt.Errorf("incomplete transfer: %d of %d bytes", d.chunk.Downloaded, d.size))
	}
	d.file.Sync()
	return nil
}
