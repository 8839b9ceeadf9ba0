package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

const (
	DefaultJournalMaxBytes   = 5 * 1024 * 1024
	DefaultJournalMaxBackups = 5
)

// JournalEntry is one line of the JSONL journal
type JournalEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Event     *domain.DetectionEvent `json:"event,omitempty"`
	Action    *domain.ActionRecord   `json:"action,omitempty"`
}

// EventJournal appends detection events and containment actions to a JSONL file.
// When the file exceeds MaxBytes it is compressed to a .zst segment and a fresh file is started.
type EventJournal struct {
	path       string
	maxBytes   int64
	maxBackups int
	logger     zerolog.Logger

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewEventJournal opens (or creates) the journal at path
func NewEventJournal(path string, maxBytes int64, maxBackups int, logger zerolog.Logger) (*EventJournal, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultJournalMaxBytes
	}
	if maxBackups <= 0 {
		maxBackups = DefaultJournalMaxBackups
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &EventJournal{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
		logger:     logger.With().Str("component", "journal").Logger(),
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *EventJournal) open() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	j.file = f
	j.size = info.Size()
	return nil
}

// Write appends a detection event
func (j *EventJournal) Write(_ context.Context, event domain.DetectionEvent) error {
	return j.append(JournalEntry{
		Timestamp: time.Now().UTC(),
		EventType: string(event.Kind),
		Event:     &event,
	})
}

// RecordAction appends a containment action. Failures are logged.
func (j *EventJournal) RecordAction(record domain.ActionRecord) {
	err := j.append(JournalEntry{
		Timestamp: time.Now().UTC(),
		EventType: "CONTAINMENT_" + string(record.Action),
		Action:    &record,
	})
	if err != nil {
		j.logger.Warn().Err(err).Msg("failed to journal containment action")
	}
}

func (j *EventJournal) append(entry JournalEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("%w: journal closed", domain.ErrIO)
	}

	if j.size > 0 && j.size+int64(len(line)) > j.maxBytes {
		if err := j.rotate(); err != nil {
			j.logger.Error().Err(err).Msg("journal rotation failed, continuing in current file")
		}
		if j.file == nil {
			return fmt.Errorf("%w: journal unavailable after rotation", domain.ErrIO)
		}
	}

	n, err := j.file.Write(line)
	j.size += int64(n)
	if err != nil {
		return fmt.Errorf("%w: journal write: %v", domain.ErrIO, err)
	}
	return nil
}

// rotate compresses the current file into a timestamped .zst segment. Caller holds mu.
func (j *EventJournal) rotate() error {
	if err := j.file.Close(); err != nil {
		return err
	}
	j.file = nil

	segment := fmt.Sprintf("%s.%s.zst", j.path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := compressFile(j.path, segment); err != nil {
		// reopen the old file so events are not lost
		if openErr := j.open(); openErr != nil {
			return fmt.Errorf("compress failed: %v; reopen failed: %w", err, openErr)
		}
		return err
	}

	if err := os.Remove(j.path); err != nil {
		j.logger.Warn().Err(err).Msg("failed to remove rotated journal")
	}
	if err := j.open(); err != nil {
		return err
	}

	j.logger.Info().Str("segment", segment).Msg("journal rotated")
	j.pruneSegments()
	return nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}

	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := enc.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// Segments lists rotated segments, oldest first
func (j *EventJournal) Segments() ([]string, error) {
	matches, err := filepath.Glob(j.path + ".*.zst")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (j *EventJournal) pruneSegments() {
	segments, err := j.Segments()
	if err != nil || len(segments) <= j.maxBackups {
		return
	}
	for _, old := range segments[:len(segments)-j.maxBackups] {
		if err := os.Remove(old); err != nil {
			j.logger.Warn().Err(err).Str("segment", old).Msg("failed to prune journal segment")
		}
	}
}

// ReadSegment decompresses a rotated segment into journal entries
func ReadSegment(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return decodeEntries(dec)
}

// ReadJournal reads the live journal file
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeEntries(f)
}

func decodeEntries(r io.Reader) ([]JournalEntry, error) {
	var entries []JournalEntry
	dec := json.NewDecoder(r)
	for {
		var entry JournalEntry
		if err := dec.Decode(&entry); err != nil {
			if err == io.EOF {
				return entries, nil
			}
			return entries, fmt.Errorf("corrupt journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
}

// Close flushes and closes the journal
func (j *EventJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// String describes the sink for log lines
func (j *EventJournal) String() string {
	return "journal:" + j.path
}
