package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/onyx-tools/onyx/internal/utils"
)

const (
	maxRetries  = 5
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second
	idleTimeout = 30 * time.Second
)

// backoffDelay doubles the base delay per attempt, capped at maxBackoff.
func backoffDelay(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d
}

// downloadChunk drives one chunk through its retry loop. Transient errors
// are retried locally and never surface unless attempts are exhausted.
func (p *workerPool) downloadChunk(ctx context.Context, chunk *Chunk) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			chunk.Retries++
			select {
			case <-time.After(backoffDelay(attempt - 1)):
			case <-ctx.Done():
				chunk.Status = ChunkPending
				return wrapKind(KindAborted, ctx.Err())
			}
			log.Debug().Str("op", "download/worker").Msgf("Retrying chunk %d of %s (attempt %d/%d)", chunk.ID, p.task.OutputPath, attempt+1, maxRetries)
		}
		err := p.streamChunk(ctx, chunk)
		if err == nil {
			chunk.Status = ChunkComplete
			p.store.MarkComplete(chunk)
			return nil
		}
		if errors.Is(err, errRangeIgnored) {
			return err
		}
		if KindOf(err) == KindAborted {
			chunk.Status = ChunkPending
			p.store.Update(chunk)
			return err
		}
		if !IsRetryable(err) {
			chunk.Status = ChunkFailed
			p.store.Update(chunk)
			return err
		}
		lastErr = err
	}
	chunk.Status = ChunkFailed
	p.store.Update(chunk)
	return lastErr
}

// streamChunk requests the not-yet-written sub-range of the chunk and writes
// it at the matching file offset, so a mid-chunk disconnect loses only bytes
// since the last resume-record update. An idle-read watchdog cancels the
// request when no bytes arrive for idleTimeout; that surfaces as a retryable
// network error.
func (p *workerPool) streamChunk(ctx context.Context, chunk *Chunk) error {
	if chunk.Remaining() == 0 {
		return nil
	}
	chunk.Status = ChunkActive

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(idleTimeout, cancel)
	defer watchdog.Stop()

	start := chunk.Start + chunk.Downloaded
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.task.URL, nil)
	if err != nil {
		return wrapKind(KindHTTPClient, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, chunk.End-1))
	req.Header.Set("Connection", "keep-alive")
	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return wrapKind(KindAborted, ctx.Err())
		}
		return wrapKind(KindNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if resp.Header.Get("Content-Range") == "" {
			return wrapKind(KindNetwork, errors.New("missing Content-Range header"))
		}
	case http.StatusOK, http.StatusRequestedRangeNotSatisfiable:
		return errRangeIgnored
	default:
		return statusError(resp.StatusCode)
	}

	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			watchdog.Reset(idleTimeout)
			if chunk.Downloaded+int64(bytesRead) > chunk.Size() {
				return wrapKind(KindNetwork, errors.New("server sent more bytes than requested"))
			}
			if _, writeErr := p.file.WriteAt(buffer[:bytesRead], chunk.Start+chunk.Downloaded); writeErr != nil {
				return wrapKind(KindDisk, writeErr)
			}
			chunk.Downloaded += int64(bytesRead)
			p.store.Update(chunk)
			p.progress(int64(bytesRead))
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
	if chunk.Remaining() != 0 {
		return wrapKind(KindNetwork, fmt.Errorf("chunk %d incomplete: %d of %d bytes", chunk.ID, chunk.Downloaded, chunk.Size()))
	}
	return nil
}
