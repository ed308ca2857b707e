package download

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TempDirName is the working directory created next to the destination for
// resume records.
const TempDirName = ".onyx-temp"

const persistInterval = 500 * time.Millisecond

// ResumeRecord is the durable snapshot of a task's chunk plan and progress.
// It is the only source of truth for resuming: the destination file's length
// is not trusted because the file is pre-allocated to full size.
type ResumeRecord struct {
	URL               string  `json:"url"`
	OutputPath        string  `json:"output_path"`
	Size              int64   `json:"size"`
	Connections       int     `json:"connections"`
	ChecksumAlgorithm string  `json:"checksum_algorithm,omitempty"`
	Chunks            []Chunk `json:"chunks"`
}

// ResumeStore serializes updates to one task's ResumeRecord. Workers for
// different chunks share it; the mutex is the single-writer discipline.
type ResumeStore struct {
	path        string
	mu          sync.Mutex
	rec         ResumeRecord
	lastPersist time.Time
}

// ResumeRecordPath derives the stable record location from the pair that
// identifies a task.
func ResumeRecordPath(url, outputPath string) string {
	sum := sha256.Sum256([]byte(url + "|" + outputPath))
	dir := filepath.Join(filepath.Dir(outputPath), TempDirName)
	return filepath.Join(dir, fmt.Sprintf("%s-%x.resume.json", filepath.Base(outputPath), sum[:4]))
}

// NewResumeStore creates a fresh record for a just-planned task and persists
// it before any byte is transferred.
func NewResumeStore(url, outputPath string, size int64, connections int, checksumAlgo string, chunks []Chunk) (*ResumeStore, error) {
	path := ResumeRecordPath(url, outputPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, wrapKind(KindDisk, err)
	}
	s := &ResumeStore{
		path: path,
		rec: ResumeRecord{
			URL:               url,
			OutputPath:        outputPath,
			Size:              size,
			Connections:       connections,
			ChecksumAlgorithm: checksumAlgo,
			Chunks:            append([]Chunk(nil), chunks...),
		},
	}
	if err := s.persist(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadResumeStore loads an existing record and validates it against the
// current request. An incompatible or unreadable record is discarded and the
// second return value is false: the caller restarts from scratch rather than
// guessing (ambiguity avoidance, not silent corruption).
func LoadResumeStore(url, outputPath string, size int64, connections int) (*ResumeStore, bool) {
	path := ResumeRecordPath(url, outputPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	discard := func(reason string) (*ResumeStore, bool) {
		log.Debug().Str("op", "download/resume-store").Msgf("Discarding resume record for %s: %s", outputPath, reason)
		os.Remove(path)
		return nil, false
	}
	var rec ResumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return discard("unreadable record")
	}
	if rec.URL != url || rec.OutputPath != outputPath {
		return discard("identity mismatch")
	}
	if rec.Size != size || rec.Connections != connections {
		return discard("plan parameters changed")
	}
	plan := PlanChunks(size, connections)
	if len(plan) != len(rec.Chunks) {
		return discard("chunk count mismatch")
	}
	for i := range plan {
		c := &rec.Chunks[i]
		if c.Start != plan[i].Start || c.End != plan[i].End {
			return discard("chunk boundaries mismatch")
		}
		if c.Downloaded < 0 || c.Downloaded > c.Size() {
			return discard("implausible progress")
		}
		// Interrupted states resume as pending; only complete survives.
		if c.Status != ChunkComplete {
			c.Status = ChunkPending
		}
	}
	return &ResumeStore{path: path, rec: rec}, true
}

// Chunks returns a copy of the recorded chunks for the pool to run.
func (s *ResumeStore) Chunks() []Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Chunk(nil), s.rec.Chunks...)
}

// Update merges one chunk's progress into the record. The merge is
// monotonic: a chunk's downloaded count only increases. Persistence is
// throttled to persistInterval to bound I/O overhead.
func (s *ResumeStore) Update(chunk *Chunk) {
	s.update(chunk, false)
}

// MarkComplete records a finished chunk and persists immediately.
func (s *ResumeStore) MarkComplete(chunk *Chunk) {
	s.update(chunk, true)
}

func (s *ResumeStore) update(chunk *Chunk, force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.ID < 0 || chunk.ID >= len(s.rec.Chunks) {
		return
	}
	rc := &s.rec.Chunks[chunk.ID]
	if chunk.Downloaded > rc.Downloaded {
		rc.Downloaded = chunk.Downloaded
	}
	rc.Status = chunk.Status
	rc.Retries = chunk.Retries
	if !force && time.Since(s.lastPersist) < persistInterval {
		return
	}
	if err := s.persist(); err != nil {
		log.Warn().Str("op", "download/resume-store").Err(err).Msg("Failed to persist resume record")
	}
}

// Flush persists the current record unconditionally.
func (s *ResumeStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(); err != nil {
		log.Warn().Str("op", "download/resume-store").Err(err).Msg("Failed to flush resume record")
	}
}

// Delete removes the record and, when empty, its temp directory.
func (s *ResumeStore) Delete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	os.Remove(s.path)
	dir := filepath.Dir(s.path)
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
}

// persist writes atomically via a temp file rename. Caller holds the mutex.
func (s *ResumeStore) persist() error {
	data, err := json.MarshalIndent(&s.rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.lastPersist = time.Now()
	return nil
}
