package domain

import (
	"path/filepath"
	"sort"
	"sync"
)

// CanaryLedger maps absolute decoy paths to the decoy that was written there.
// Writers are decoy creation and ledger restore; the monitor only reads.
type CanaryLedger struct {
	entries map[string]DecoyFile
	mu      sync.RWMutex
}

// NewCanaryLedger creates an empty ledger
func NewCanaryLedger() *CanaryLedger {
	return &CanaryLedger{
		entries: make(map[string]DecoyFile),
	}
}

// Register adds or replaces a decoy entry
func (l *CanaryLedger) Register(decoy DecoyFile) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[filepath.Clean(decoy.Path)] = decoy
}

// Lookup returns the decoy recorded for path
func (l *CanaryLedger) Lookup(path string) (DecoyFile, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	decoy, ok := l.entries[filepath.Clean(path)]
	return decoy, ok
}

// Contains reports whether path is a tracked decoy
func (l *CanaryLedger) Contains(path string) bool {
	_, ok := l.Lookup(path)
	return ok
}

// Remove drops a decoy entry (explicit cleanup only)
func (l *CanaryLedger) Remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, filepath.Clean(path))
}

// Len returns the number of tracked decoys
func (l *CanaryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// Snapshot returns a copy of all entries sorted by path
func (l *CanaryLedger) Snapshot() []DecoyFile {
	l.mu.RLock()
	decoys := make([]DecoyFile, 0, len(l.entries))
	for _, decoy := range l.entries {
		decoys = append(decoys, decoy)
	}
	l.mu.RUnlock()

	sort.Slice(decoys, func(i, j int) bool { return decoys[i].Path < decoys[j].Path })
	return decoys
}

// Directories returns the distinct parent directories of tracked decoys
func (l *CanaryLedger) Directories() []string {
	l.mu.RLock()
	seen := make(map[string]struct{}, len(l.entries))
	for path := range l.entries {
		seen[filepath.Dir(path)] = struct{}{}
	}
	l.mu.RUnlock()

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}
