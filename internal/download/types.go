package download

import (
	"time"

	"github.com/google/uuid"

	"github.com/onyx-tools/onyx/internal/utils"
)

type TaskStatus string

const (
	StatusPlanning     TaskStatus = "planning"
	StatusTransferring TaskStatus = "transferring"
	StatusVerifying    TaskStatus = "verifying"
	StatusDone         TaskStatus = "done"
	StatusFailed       TaskStatus = "failed"
)

type ChunkStatus string

const (
	ChunkPending  ChunkStatus = "pending"
	ChunkActive   ChunkStatus = "active"
	ChunkComplete ChunkStatus = "complete"
	ChunkFailed   ChunkStatus = "failed"
)

// Chunk is one contiguous byte range of a task. End is exclusive. The JSON
// tags define the on-disk resume record layout.
type Chunk struct {
	ID         int         `json:"id"`
	Start      int64       `json:"start"`
	End        int64       `json:"end"`
	Downloaded int64       `json:"downloaded"`
	Status     ChunkStatus `json:"status"`
	Retries    int         `json:"retries"`
}

// Size returns the chunk's total byte count.
func (c *Chunk) Size() int64 {
	return c.End - c.Start
}

// Remaining returns the bytes not yet written for this chunk.
func (c *Chunk) Remaining() int64 {
	return c.Size() - c.Downloaded
}

// Task describes one download. It is owned by the caller and mutated only by
// the run executing it.
type Task struct {
	ID               string
	URL              string
	OutputPath       string
	ExpectedSize     int64
	SupportsRange    bool
	Checksum         *Checksum
	Connections      int
	MaxSize          int64
	Resume           bool
	DeleteOnMismatch bool
	Status           TaskStatus
	ClientConfig     utils.HTTPClientConfig
	Progress         *ProgressAggregator
}

// NewTask returns a Task with a fresh ID and sane defaults.
func NewTask(url, outputPath string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		URL:         url,
		OutputPath:  outputPath,
		Connections: 1,
	}
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
	ResultAborted ResultStatus = "aborted"
)

// Result is the single terminal record of a task. Immutable after creation.
type Result struct {
	TaskID           string
	URL              string
	OutputPath       string
	Status           ResultStatus
	Bytes            int64
	Duration         time.Duration
	Kind             ErrorKind
	Err              error
	ChecksumVerified *bool
}
