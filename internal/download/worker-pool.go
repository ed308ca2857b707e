package download

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/onyx-tools/onyx/internal/utils"
)

// workerPool runs all chunks of one task concurrently, bounded by the task's
// connection count. The destination file descriptor is shared: ranges are
// disjoint, so WriteAt needs no locking.
type workerPool struct {
	task   *Task
	client *utils.OnyxHTTPClient
	file   *os.File
	store  *ResumeStore
	chunks []Chunk
}

func (p *workerPool) progress(n int64) {
	if p.task.Progress != nil {
		p.task.Progress.Add(n)
	}
}

// run launches one worker per incomplete chunk and waits for the task to
// settle. The first chunk that exhausts its retries cancels the rest
// cooperatively; their last known progress is flushed so the resume record
// stays consistent.
func (p *workerPool) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.task.Connections)
	errCh := make(chan error, len(p.chunks))
	var wg sync.WaitGroup
	for i := range p.chunks {
		chunk := &p.chunks[i]
		if chunk.Downloaded > 0 {
			// Resumed bytes count toward the task total.
			p.progress(chunk.Downloaded)
		}
		if chunk.Status == ChunkComplete {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				errCh <- wrapKind(KindAborted, runCtx.Err())
				return
			}
			defer func() { <-sem }()
			if err := p.downloadChunk(runCtx, chunk); err != nil {
				errCh <- err
				cancel()
			}
		}()
	}
	wg.Wait()
	p.store.Flush()
	close(errCh)

	var firstErr, abortErr error
	for err := range errCh {
		if errors.Is(err, errRangeIgnored) {
			return err
		}
		if KindOf(err) == KindAborted {
			if abortErr == nil {
				abortErr = err
			}
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return abortErr
}

func (p *workerPool) bytesDownloaded() int64 {
	var total int64
	for i := range p.chunks {
		total += p.chunks[i].Downloaded
	}
	return total
}
