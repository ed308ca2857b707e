package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/onyx-tools/onyx/internal/utils"
)

// Run executes one task end to end: probe, name resolution, chunk planning
// or resume, transfer, checksum verification. It always returns exactly one
// terminal Result and closes the task's progress aggregator.
func Run(ctx context.Context, task *Task) Result {
	start := time.Now()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Connections < 1 {
		task.Connections = 1
	}
	defer func() {
		if task.Progress != nil {
			task.Progress.Close()
		}
	}()

	res := Result{TaskID: task.ID, URL: task.URL, OutputPath: task.OutputPath}
	fail := func(err error) Result {
		task.Status = StatusFailed
		res.Status = ResultFailed
		if KindOf(err) == KindAborted {
			res.Status = ResultAborted
		}
		res.Kind = KindOf(err)
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	task.Status = StatusPlanning
	client := utils.NewOnyxHTTPClient(task.ClientConfig)

	info, err := Resolve(ctx, task.URL, client)
	if err != nil {
		return fail(err)
	}
	task.ExpectedSize = info.Size
	task.SupportsRange = info.SupportsRange
	log.Debug().Str("op", "download").Msgf("Resolved %s: size=%d ranges=%v", task.URL, info.Size, info.SupportsRange)

	if task.MaxSize > 0 && info.Size > 0 && info.Size > task.MaxSize {
		return fail(wrapKind(KindSizeLimit, fmt.Errorf("declared size %s exceeds limit %s",
			utils.FormatBytes(uint64(info.Size)), utils.FormatBytes(uint64(task.MaxSize)))))
	}

	outPath := ResolveOutputPath(task.OutputPath, info, task.URL)
	recordExists := false
	if _, err := os.Stat(ResumeRecordPath(task.URL, outPath)); err == nil {
		recordExists = true
	}
	if _, err := os.Stat(outPath); err == nil && !recordExists {
		// Existing file with no matching resume record is never overwritten.
		outPath = utils.RenewOutputPath(outPath)
	}
	task.OutputPath = outPath
	res.OutputPath = outPath
	if task.Progress != nil {
		task.Progress.SetTotal(info.Size)
	}

	ranged := info.SupportsRange && info.Size > 0

	var store *ResumeStore
	var chunks []Chunk
	resumed := false
	if ranged && task.Resume {
		if st, ok := LoadResumeStore(task.URL, outPath, info.Size, task.Connections); ok {
			store = st
			chunks = st.Chunks()
			resumed = true
			log.Info().Str("op", "download").Msgf("Resuming %s from saved progress", outPath)
		}
	}
	if resumed {
		// The record promises bytes at offsets in a pre-allocated file; if
		// the file is gone or the wrong size the promise is void.
		if fi, err := os.Stat(outPath); err != nil || fi.Size() != info.Size {
			store.Delete()
			store = nil
			chunks = nil
			resumed = false
		}
	}
	if !resumed && recordExists {
		// Stale or incompatible record: restart from scratch at the same path.
		os.Remove(ResumeRecordPath(task.URL, outPath))
	}

	fileFlag := os.O_RDWR | os.O_CREATE
	if !resumed {
		fileFlag |= os.O_TRUNC
	}
	file, err := os.OpenFile(outPath, fileFlag, 0644)
	if err != nil {
		return fail(wrapKind(KindDisk, err))
	}
	defer file.Close()

	task.Status = StatusTransferring
	var simple *simpleDownloader
	if ranged {
		if !resumed {
			chunks = PlanChunks(info.Size, task.Connections)
			algo := ""
			if task.Checksum != nil {
				algo = task.Checksum.Algorithm
			}
			store, err = NewResumeStore(task.URL, outPath, info.Size, task.Connections, algo, chunks)
			if err != nil {
				return fail(err)
			}
			// Pre-allocate so disjoint-offset writes land in place.
			if err := file.Truncate(info.Size); err != nil {
				store.Delete()
				return fail(wrapKind(KindDisk, err))
			}
		}
		pool := &workerPool{task: task, client: client, file: file, store: store, chunks: chunks}
		err = pool.run(ctx)
		if errors.Is(err, errRangeIgnored) {
			log.Warn().Str("op", "download").Msgf("Server ignored range requests for %s, falling back to single stream", task.URL)
			store.Delete()
			store = nil
			if err := file.Truncate(0); err != nil {
				return fail(wrapKind(KindDisk, err))
			}
			if task.Progress != nil {
				task.Progress.Reset()
			}
			simple = newSimpleDownloader(task, client, file, info.Size)
			err = simple.run(ctx)
			res.Bytes = simple.chunk.Downloaded
		} else {
			res.Bytes = pool.bytesDownloaded()
		}
	} else {
		simple = newSimpleDownloader(task, client, file, info.Size)
		err = simple.run(ctx)
		res.Bytes = simple.chunk.Downloaded
	}
	if err != nil {
		// The resume record (if any) is kept for a future resume.
		return fail(err)
	}

	if task.Checksum != nil {
		task.Status = StatusVerifying
		ok := false
		if simple != nil && simple.hashOK {
			ok = task.Checksum.Matches(simple.hasher)
		} else {
			var verr error
			ok, _, verr = task.Checksum.VerifyFile(outPath)
			if verr != nil {
				return fail(verr)
			}
		}
		verified := ok
		res.ChecksumVerified = &verified
		if store != nil {
			// A checksum failure is not resumable; drop the record either way.
			store.Delete()
			store = nil
		}
		if !ok {
			if task.DeleteOnMismatch {
				os.Remove(outPath)
			}
			return fail(wrapKind(KindChecksumMismatch, fmt.Errorf("%s checksum mismatch for %s", task.Checksum.Algorithm, outPath)))
		}
	}

	if store != nil {
		store.Delete()
	}
	task.Status = StatusDone
	res.Status = ResultSuccess
	res.Duration = time.Since(start)
	log.Info().Str("op", "download").Msgf("Download complete: %s (%s)", outPath, utils.FormatBytes(uint64(res.Bytes)))
	return res
}
