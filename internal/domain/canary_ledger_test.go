package domain

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanaryLedger_RegisterLookup(t *testing.T) {
	ledger := NewCanaryLedger()
	decoy := DecoyFile{Path: "/data/decoys/passwords.docx", Token: "t-1"}

	ledger.Register(decoy)

	got, ok := ledger.Lookup("/data/decoys/../decoys/passwords.docx")
	assert.True(t, ok)
	assert.Equal(t, decoy, got)
	assert.True(t, ledger.Contains("/data/decoys/passwords.docx"))
	assert.False(t, ledger.Contains("/data/decoys/other.docx"))
	assert.Equal(t, 1, ledger.Len())

	ledger.Register(DecoyFile{Path: decoy.Path, Token: "t-2"})
	got, _ = ledger.Lookup(decoy.Path)
	assert.Equal(t, "t-2", got.Token)
	assert.Equal(t, 1, ledger.Len())

	ledger.Remove(decoy.Path)
	assert.False(t, ledger.Contains(decoy.Path))
	assert.Zero(t, ledger.Len())
}

func TestCanaryLedger_SnapshotAndDirectories(t *testing.T) {
	ledger := NewCanaryLedger()
	ledger.Register(DecoyFile{Path: "/b/z.docx"})
	ledger.Register(DecoyFile{Path: "/a/y.docx"})
	ledger.Register(DecoyFile{Path: "/a/x.docx"})

	snapshot := ledger.Snapshot()
	paths := make([]string, 0, len(snapshot))
	for _, d := range snapshot {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"/a/x.docx", "/a/y.docx", "/b/z.docx"}, paths)

	snapshot[0].Token = "mutated"
	got, _ := ledger.Lookup("/a/x.docx")
	assert.Empty(t, got.Token)

	assert.Equal(t, []string{filepath.Clean("/a"), filepath.Clean("/b")}, ledger.Directories())
}

func TestCanaryLedger_Concurrent(t *testing.T) {
	ledger := NewCanaryLedger()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				path := fmt.Sprintf("/d/%d-%d.docx", worker, j)
				ledger.Register(DecoyFile{Path: path})
				ledger.Contains(path)
				ledger.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 800, ledger.Len())
}
