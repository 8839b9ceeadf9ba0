package domain

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SignificantEntropyIncrease is the jump in bits/byte that marks in-place encryption
const SignificantEntropyIncrease = 2.0

// DefaultTrackerSize bounds the number of remembered baselines
const DefaultTrackerSize = 4096

// FileEntropyRecord tracks entropy values for one file across scans
type FileEntropyRecord struct {
	FilePath        string
	OriginalEntropy float64
	CurrentEntropy  float64
	Delta           float64
	Size            int64
	ModTime         time.Time
	FirstSeen       time.Time
	LastSeen        time.Time
	ModifiedCount   int
	Flagged         bool
}

// Unchanged reports whether size and mtime match the last observation
func (r *FileEntropyRecord) Unchanged(size int64, modTime time.Time) bool {
	return r.Size == size && r.ModTime.Equal(modTime)
}

// EntropyTracker remembers per-file entropy baselines.
// The cache is bounded; evicted files simply get a new baseline on their next scan.
type EntropyTracker struct {
	records *lru.Cache[string, *FileEntropyRecord]
}

// NewEntropyTracker creates a tracker holding at most size records
func NewEntropyTracker(size int) (*EntropyTracker, error) {
	if size <= 0 {
		size = DefaultTrackerSize
	}
	cache, err := lru.New[string, *FileEntropyRecord](size)
	if err != nil {
		return nil, err
	}
	return &EntropyTracker{records: cache}, nil
}

// TrackFileEntropy records an analysis result.
// Returns isNew when this is the first observation and the delta from the baseline otherwise.
func (et *EntropyTracker) TrackFileEntropy(result *FileEntropy) (isNew bool, delta float64, record *FileEntropyRecord) {
	now := time.Now()

	existing, ok := et.records.Get(result.FilePath)
	if !ok {
		record = &FileEntropyRecord{
			FilePath:        result.FilePath,
			OriginalEntropy: result.Entropy,
			CurrentEntropy:  result.Entropy,
			Size:            result.FileSize,
			ModTime:         result.ModTime,
			FirstSeen:       now,
			LastSeen:        now,
		}
		et.records.Add(result.FilePath, record)
		return true, 0, record
	}

	existing.CurrentEntropy = result.Entropy
	existing.Delta = result.Entropy - existing.OriginalEntropy
	existing.Size = result.FileSize
	existing.ModTime = result.ModTime
	existing.LastSeen = now
	existing.ModifiedCount++

	return false, existing.Delta, existing
}

// GetEntropyRecord retrieves the record for a file without touching recency
func (et *EntropyTracker) GetEntropyRecord(filePath string) (*FileEntropyRecord, bool) {
	return et.records.Peek(filePath)
}

// Forget drops the record for a file (deleted or renamed away)
func (et *EntropyTracker) Forget(filePath string) {
	et.records.Remove(filePath)
}

// Paths returns the tracked file paths, least recently used first
func (et *EntropyTracker) Paths() []string {
	return et.records.Keys()
}

// Len returns the number of tracked files
func (et *EntropyTracker) Len() int {
	return et.records.Len()
}

// IsSignificantEntropyIncrease checks if entropy increased enough to suggest encryption
func IsSignificantEntropyIncrease(delta float64) bool {
	return delta >= SignificantEntropyIncrease
}
