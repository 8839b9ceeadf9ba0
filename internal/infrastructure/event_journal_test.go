package infrastructure

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

func TestEventJournal_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	journal, err := NewEventJournal(path, 0, 0, zerolog.Nop())
	require.NoError(t, err)

	event := domain.NewRenameEvent("/d/passwords.docx", "/d/passwords.docx.locked")
	require.NoError(t, journal.Write(context.Background(), event))
	journal.RecordAction(domain.ActionRecord{Action: domain.ActionIsolateNetwork, SafeMode: true, Simulated: true, Outcome: "logged only"})
	require.NoError(t, journal.Close())

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "DECOY_RENAMED", entries[0].EventType)
	require.NotNil(t, entries[0].Event)
	assert.Equal(t, event.ID, entries[0].Event.ID)
	assert.Equal(t, "/d/passwords.docx.locked", entries[0].Event.RenameTarget)
	assert.Nil(t, entries[0].Action)

	assert.Equal(t, "CONTAINMENT_ISOLATE_NETWORK", entries[1].EventType)
	require.NotNil(t, entries[1].Action)
	assert.Equal(t, "logged only", entries[1].Action.Outcome)
}

func TestEventJournal_RotatesToZstdSegments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	journal, err := NewEventJournal(path, 600, 2, zerolog.Nop())
	require.NoError(t, err)
	defer journal.Close()

	for i := 0; i < 30; i++ {
		event := domain.NewDetectionEvent(domain.KindDecoyModified, filepath.Join("/decoys", "salary_data.docx"))
		require.NoError(t, journal.Write(context.Background(), event))
	}

	segments, err := journal.Segments()
	require.NoError(t, err)
	require.NotEmpty(t, segments)
	assert.LessOrEqual(t, len(segments), 2)

	for _, segment := range segments {
		assert.Equal(t, ".zst", filepath.Ext(segment))

		entries, err := ReadSegment(segment)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		for _, entry := range entries {
			assert.Equal(t, "DECOY_MODIFIED", entry.EventType)
		}
	}

	live, err := ReadJournal(path)
	require.NoError(t, err)
	assert.NotEmpty(t, live)
}

func TestEventJournal_WriteAfterClose(t *testing.T) {
	journal, err := NewEventJournal(filepath.Join(t.TempDir(), "events.jsonl"), 0, 0, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, journal.Close())
	require.NoError(t, journal.Close())

	err = journal.Write(context.Background(), domain.NewDetectionEvent(domain.KindDecoyDeleted, "/x"))
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestEventJournal_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	for i := 0; i < 2; i++ {
		journal, err := NewEventJournal(path, 0, 0, zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, journal.Write(context.Background(), domain.NewDetectionEvent(domain.KindDecoyDeleted, "/x")))
		require.NoError(t, journal.Close())
	}

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
