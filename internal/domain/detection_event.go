package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventKind categorizes a suspicious observation
type EventKind string

const (
	KindDecoyModified EventKind = "DECOY_MODIFIED"
	KindDecoyDeleted  EventKind = "DECOY_DELETED"
	KindDecoyRenamed  EventKind = "DECOY_RENAMED"
	KindHighEntropy   EventKind = "HIGH_ENTROPY"
)

// IsDecoyKind reports whether the event came from tampering with bait
func (k EventKind) IsDecoyKind() bool {
	return k == KindDecoyModified || k == KindDecoyDeleted || k == KindDecoyRenamed
}

// DetectionEvent represents one suspicious observation
type DetectionEvent struct {
	ID           string    `json:"id"`
	SubjectPath  string    `json:"subject_path"`
	Kind         EventKind `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
	RenameTarget string    `json:"rename_target,omitempty"`
	Entropy      float64   `json:"entropy,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// NewDetectionEvent creates an event stamped with a fresh ID and the current time
func NewDetectionEvent(kind EventKind, subjectPath string) DetectionEvent {
	return DetectionEvent{
		ID:          uuid.NewString(),
		SubjectPath: subjectPath,
		Kind:        kind,
		Timestamp:   time.Now().UTC(),
	}
}

// NewRenameEvent creates a DECOY_RENAMED event carrying the destination path
func NewRenameEvent(subjectPath, renameTarget string) DetectionEvent {
	event := NewDetectionEvent(KindDecoyRenamed, subjectPath)
	event.RenameTarget = renameTarget
	return event
}

// String renders the event for log lines and CLI output
func (e DetectionEvent) String() string {
	switch e.Kind {
	case KindDecoyRenamed:
		if e.RenameTarget == "" {
			return fmt.Sprintf("%s %s", e.Kind, e.SubjectPath)
		}
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.SubjectPath, e.RenameTarget)
	case KindHighEntropy:
		return fmt.Sprintf("%s %s (%.3f bits/byte)", e.Kind, e.SubjectPath, e.Entropy)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.SubjectPath)
	}
}

// IsRansomwareExtension checks if the filename ends with a known ransomware extension (case-insensitively)
func IsRansomwareExtension(filename string, extensions []string) bool {
	lowerFilename := strings.ToLower(filename)

	for _, ext := range extensions {
		if ext != "" && strings.HasSuffix(lowerFilename, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
