package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/onyx-tools/onyx/internal/download"
)

// Batch runs independent download tasks under one shared concurrency budget
// and failure policy. The per-task connection counts compose with the batch
// limit; the scheduler only bounds how many tasks run at once.
type Batch struct {
	Tasks           []*download.Task
	Concurrency     int
	ContinueOnError bool

	// OnResult, when set, is called as each task settles (concurrently safe
	// for the scheduler; callbacks are serialized).
	OnResult func(index int, res download.Result)
}

// Summary aggregates a drained batch.
type Summary struct {
	Results   []download.Result
	Succeeded int
	Failed    int
	Aborted   bool
}

// Run drains the batch. Results preserve the submission order of Tasks and
// always have one entry per task: tasks cancelled before starting settle as
// Aborted. Without ContinueOnError, the first failure cancels everything
// still pending or in flight.
func Run(ctx context.Context, batch Batch) Summary {
	n := len(batch.Tasks)
	results := make([]download.Result, n)
	if batch.Concurrency < 1 {
		batch.Concurrency = 1
	}

	type job struct {
		index int
		task  *download.Task
	}
	jobCh := make(chan job, n)
	for i, t := range batch.Tasks {
		jobCh <- job{index: i, task: t}
	}
	close(jobCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var abortFlag atomic.Bool
	var cbMu sync.Mutex

	settle := func(index int, res download.Result) {
		results[index] = res
		if batch.OnResult != nil {
			cbMu.Lock()
			batch.OnResult(index, res)
			cbMu.Unlock()
		}
	}

	var wg sync.WaitGroup
	for w := 0; w < batch.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if runCtx.Err() != nil {
					settle(j.index, download.Result{
						TaskID:     j.task.ID,
						URL:        j.task.URL,
						OutputPath: j.task.OutputPath,
						Status:     download.ResultAborted,
						Kind:       download.KindAborted,
						Err:        runCtx.Err(),
					})
					continue
				}
				res := download.Run(runCtx, j.task)
				settle(j.index, res)
				if res.Status == download.ResultFailed && !batch.ContinueOnError {
					log.Warn().Str("op", "scheduler").Msgf("Task failed for %s, aborting batch", j.task.URL)
					abortFlag.Store(true)
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	summary := Summary{Results: results, Aborted: abortFlag.Load()}
	for _, res := range results {
		switch res.Status {
		case download.ResultSuccess:
			summary.Succeeded++
		case download.ResultFailed:
			summary.Failed++
		}
	}
	return summary
}
