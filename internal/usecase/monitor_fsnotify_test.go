package usecase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
	"github.com/S-Axhwin/ransomwar-engine/internal/infrastructure"
	"github.com/S-Axhwin/ransomwar-engine/internal/repository"
)

type liveMonitorFixture struct {
	root      string
	decoyDir  string
	decoys    map[string]domain.DecoyFile
	monitor   *FileMonitor
	collector *alertCollector
}

func newLiveMonitorFixture(t *testing.T) *liveMonitorFixture {
	t.Helper()

	root := t.TempDir()
	decoyDir := filepath.Join(root, "decoys")
	size := domain.SizeRange{MinKiB: 1, MaxKiB: 1}

	ds := NewDecoyService(decoyDir, size, zerolog.Nop())
	decoys := make(map[string]domain.DecoyFile)
	for _, name := range []string{"a", "b", "c", "d"} {
		decoy, err := ds.CreateDecoy(name, ".docx", size)
		require.NoError(t, err)
		decoys[name] = *decoy
	}

	monitor := NewFileMonitor(infrastructure.NewFSWatcher, zerolog.Nop())
	monitor.SetRenameWindow(250 * time.Millisecond)

	f := &liveMonitorFixture{
		root:      root,
		decoyDir:  decoyDir,
		decoys:    decoys,
		monitor:   monitor,
		collector: &alertCollector{},
	}
	require.NoError(t, monitor.Start(root, ds.Ledger(), f.collector.collect))
	t.Cleanup(monitor.Stop)
	return f
}

func (f *liveMonitorFixture) waitFor(t *testing.T, kind domain.EventKind, path string) domain.DetectionEvent {
	t.Helper()

	var found domain.DetectionEvent
	require.Eventually(t, func() bool {
		for _, event := range f.collector.all() {
			if event.Kind == kind && event.SubjectPath == path {
				found = event
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "no %s event for %s", kind, path)
	return found
}

func appendJunk(t *testing.T, path string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = file.WriteString("ENCRYPTED_DATA_JUNK")
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestFileMonitor_LiveFilesystem(t *testing.T) {
	f := newLiveMonitorFixture(t)

	appendJunk(t, f.decoys["a"].Path)
	f.waitFor(t, domain.KindDecoyModified, f.decoys["a"].Path)

	require.NoError(t, os.Remove(f.decoys["b"].Path))
	f.waitFor(t, domain.KindDecoyDeleted, f.decoys["b"].Path)

	locked := f.decoys["c"].Path + ".locked"
	require.NoError(t, os.Rename(f.decoys["c"].Path, locked))
	renamed := f.waitFor(t, domain.KindDecoyRenamed, f.decoys["c"].Path)
	assert.Equal(t, locked, renamed.RenameTarget)

	// moved out of the decoy directory but still inside the watched tree
	moved := filepath.Join(f.root, "d.docx.locked")
	require.NoError(t, os.Rename(f.decoys["d"].Path, moved))
	renamed = f.waitFor(t, domain.KindDecoyRenamed, f.decoys["d"].Path)
	assert.Equal(t, moved, renamed.RenameTarget)
}

func TestFileMonitor_LiveNoCallbacksAfterStop(t *testing.T) {
	f := newLiveMonitorFixture(t)

	f.monitor.Stop()
	before := f.collector.count()

	barrier, err := infrastructure.NewFSWatcher()
	require.NoError(t, err)
	defer barrier.Close()
	require.NoError(t, barrier.Add(f.decoyDir))

	appendJunk(t, f.decoys["a"].Path)
	require.NoError(t, os.Remove(f.decoys["b"].Path))
	sentinel := filepath.Join(f.decoyDir, "sentinel")
	require.NoError(t, os.WriteFile(sentinel, []byte("x"), 0644))

	// the sentinel arrives after the decoy changes were queued by the kernel
	timeout := time.After(5 * time.Second)
	for waiting := true; waiting; {
		select {
		case ev, ok := <-barrier.Events():
			require.True(t, ok)
			waiting = !(ev.Path == sentinel && ev.Op.Has(repository.OpCreate))
		case <-timeout:
			t.Fatal("sentinel event never arrived")
		}
	}

	assert.Equal(t, before, f.collector.count())
	assert.False(t, f.monitor.IsRunning())
}
