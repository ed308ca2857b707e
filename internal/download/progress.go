package download

import (
	"sync"
	"sync/atomic"
	"time"
)

const progressInterval = 200 * time.Millisecond

// ProgressSnapshot is one discrete progress event. Total is -1 while the
// resource size is unknown.
type ProgressSnapshot struct {
	TaskID     string
	Downloaded int64
	Total      int64
	Speed      float64 // bytes per second over the last interval
	Done       bool
}

// ProgressAggregator folds per-worker byte counts into task-level snapshots
// emitted on a fixed cadence. It is owned by the caller and passed into the
// task; renderers subscribe via Events without affecting core control flow.
type ProgressAggregator struct {
	taskID     string
	total      atomic.Int64
	downloaded atomic.Int64
	events     chan ProgressSnapshot
	stop       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

func NewProgressAggregator(taskID string) *ProgressAggregator {
	a := &ProgressAggregator{
		taskID: taskID,
		events: make(chan ProgressSnapshot, 16),
		stop:   make(chan struct{}),
	}
	a.total.Store(-1)
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *ProgressAggregator) SetTotal(n int64) {
	a.total.Store(n)
}

// Add records transferred bytes. Negative deltas roll back progress after a
// restarted transfer.
func (a *ProgressAggregator) Add(n int64) {
	a.downloaded.Add(n)
}

// Reset zeroes the transferred count (full restart of a task).
func (a *ProgressAggregator) Reset() {
	a.downloaded.Store(0)
}

func (a *ProgressAggregator) Downloaded() int64 {
	return a.downloaded.Load()
}

// Events is the snapshot stream; it is closed after Close, following one
// final snapshot with Done set.
func (a *ProgressAggregator) Events() <-chan ProgressSnapshot {
	return a.events
}

// Close stops emission, sends the final snapshot and closes Events. Safe to
// call more than once.
func (a *ProgressAggregator) Close() {
	a.closeOnce.Do(func() {
		close(a.stop)
		a.wg.Wait()
	})
}

func (a *ProgressAggregator) loop() {
	defer a.wg.Done()
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	lastBytes := int64(0)
	lastTime := time.Now()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			downloaded := a.downloaded.Load()
			elapsed := now.Sub(lastTime).Seconds()
			speed := 0.0
			if elapsed > 0 {
				speed = float64(downloaded-lastBytes) / elapsed
			}
			a.emit(ProgressSnapshot{
				TaskID:     a.taskID,
				Downloaded: downloaded,
				Total:      a.total.Load(),
				Speed:      speed,
			})
			lastBytes = downloaded
			lastTime = now
		case <-a.stop:
			a.emit(ProgressSnapshot{
				TaskID:     a.taskID,
				Downloaded: a.downloaded.Load(),
				Total:      a.total.Load(),
				Done:       true,
			})
			close(a.events)
			return
		}
	}
}

// emit never blocks; a slow renderer drops intermediate snapshots.
func (a *ProgressAggregator) emit(s ProgressSnapshot) {
	select {
	case a.events <- s:
	default:
	}
}
