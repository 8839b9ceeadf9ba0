package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

func newTestDecoyService(t *testing.T) (*DecoyService, string) {
	t.Helper()
	dir := t.TempDir()
	return NewDecoyService(dir, domain.DefaultSizeRange, zerolog.Nop()), dir
}

func appendToFile(t *testing.T, path string, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestDecoyService_CreateThenVerify(t *testing.T) {
	ds, dir := newTestDecoyService(t)

	for _, name := range domain.DefaultDecoyNames {
		decoy, err := ds.CreateDecoy(name, ".txt", domain.DefaultSizeRange)
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, name+".txt"), decoy.Path)
		assert.True(t, ds.VerifyCanary(decoy.Path), "fresh decoy %s must verify", name)
	}

	assert.Equal(t, len(domain.DefaultDecoyNames), ds.Ledger().Len())
}

func TestDecoyService_ReportScenario(t *testing.T) {
	ds, _ := newTestDecoyService(t)

	decoy, err := ds.CreateDecoy("report", ".docx", domain.SizeRange{MinKiB: 10, MaxKiB: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 10*1024, decoy.SizeBytes)
	require.True(t, ds.VerifyCanary(decoy.Path))

	appendToFile(t, decoy.Path, []byte("ENCRYPTED_DATA_JUNK"))

	assert.False(t, ds.VerifyCanary(decoy.Path))

	recorded, ok := ds.Ledger().Lookup(decoy.Path)
	require.True(t, ok)
	assert.Equal(t, decoy.Token, recorded.Token, "ledger keeps the original token")
}

func TestDecoyService_VerifyCanary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, path string)
		want   bool
	}{
		{
			name:   "untouched",
			mutate: func(t *testing.T, path string) {},
			want:   true,
		},
		{
			name: "trailing newline is tolerated",
			mutate: func(t *testing.T, path string) {
				appendToFile(t, path, []byte("\n"))
			},
			want: true,
		},
		{
			name: "trailing garbage",
			mutate: func(t *testing.T, path string) {
				appendToFile(t, path, []byte("garbage"))
			},
			want: false,
		},
		{
			name: "marker removed",
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("encrypted blob"), 0644))
			},
			want: false,
		},
		{
			name: "deleted",
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.Remove(path))
			},
			want: false,
		},
		{
			name: "foreign token",
			mutate: func(t *testing.T, path string) {
				content := domain.BuildDecoyContent([]byte("payload"), domain.NewDecoyToken())
				require.NoError(t, os.WriteFile(path, content, 0644))
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, _ := newTestDecoyService(t)
			decoy, err := ds.CreateDecoy("salary_data", ".txt", domain.SizeRange{MinKiB: 5, MaxKiB: 6})
			require.NoError(t, err)

			tt.mutate(t, decoy.Path)
			assert.Equal(t, tt.want, ds.VerifyCanary(decoy.Path))
		})
	}
}

func TestDecoyService_VerifyCanaryUnknownPath(t *testing.T) {
	ds, dir := newTestDecoyService(t)

	path := filepath.Join(dir, "untracked.txt")
	content := domain.BuildDecoyContent([]byte("payload"), domain.NewDecoyToken())
	require.NoError(t, os.WriteFile(path, content, 0644))

	assert.False(t, ds.VerifyCanary(path), "files outside the ledger never verify")
}

func TestDecoyService_CreateFailureLeavesLedgerUntouched(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	ds := NewDecoyService(filepath.Join(blocker, "decoys"), domain.DefaultSizeRange, zerolog.Nop())

	decoy, err := ds.CreateDecoy("passwords", ".txt", domain.DefaultSizeRange)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIO)
	assert.Nil(t, decoy)
	assert.Zero(t, ds.Ledger().Len())
}

func TestDecoyService_CreateRejectsBadRange(t *testing.T) {
	ds, dir := newTestDecoyService(t)

	_, err := ds.CreateDecoy("passwords", ".txt", domain.SizeRange{MinKiB: 10, MaxKiB: 5})
	require.Error(t, err)
	assert.Zero(t, ds.Ledger().Len())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial or temp files are left behind")
}

func TestDecoyService_DeployAdoptsExisting(t *testing.T) {
	ds, dir := newTestDecoyService(t)

	first, err := ds.Deploy([]string{"passwords"}, ".txt", false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	restarted := NewDecoyService(dir, domain.DefaultSizeRange, zerolog.Nop())
	second, err := restarted.Deploy([]string{"passwords"}, ".txt", false)
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[0].Token, second[0].Token, "existing decoy keeps its token")
	assert.True(t, restarted.VerifyCanary(second[0].Path))

	rewritten, err := restarted.Deploy([]string{"passwords"}, ".txt", true)
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Token, rewritten[0].Token)
}

func TestDecoyService_CheckAll(t *testing.T) {
	ds, _ := newTestDecoyService(t)

	decoys, err := ds.Deploy(domain.DefaultDecoyNames, ".txt", true)
	require.NoError(t, err)
	require.Len(t, decoys, 3)

	assert.Empty(t, ds.CheckAll())

	require.NoError(t, os.Remove(decoys[0].Path))
	appendToFile(t, decoys[1].Path, []byte("locked"))

	events := ds.CheckAll()
	require.Len(t, events, 2)

	kinds := map[string]domain.EventKind{}
	for _, event := range events {
		kinds[event.SubjectPath] = event.Kind
	}
	assert.Equal(t, domain.KindDecoyDeleted, kinds[decoys[0].Path])
	assert.Equal(t, domain.KindDecoyModified, kinds[decoys[1].Path])
}

func TestDecoyService_StartCanaryMonitoringReportsOnce(t *testing.T) {
	ds, _ := newTestDecoyService(t)

	decoy, err := ds.CreateDecoy("strategic_plan", ".txt", domain.DefaultSizeRange)
	require.NoError(t, err)
	require.NoError(t, os.Remove(decoy.Path))

	collector := &alertCollector{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ds.StartCanaryMonitoring(ctx, 10*time.Millisecond, collector.collect)
		close(done)
	}()

	require.Eventually(t, func() bool { return collector.count() > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	events := collector.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindDecoyDeleted, events[0].Kind)
}

func TestDecoyService_PersistAndRestore(t *testing.T) {
	ds, dir := newTestDecoyService(t)
	store := &memoryLedgerStore{}

	decoys, err := ds.Deploy(domain.DefaultDecoyNames, ".txt", true)
	require.NoError(t, err)
	require.NoError(t, ds.Persist(context.Background(), store))

	appendToFile(t, decoys[2].Path, []byte("tampered"))

	restarted := NewDecoyService(dir, domain.DefaultSizeRange, zerolog.Nop())
	restored, broken, err := restarted.Restore(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, 2, restored)
	require.Len(t, broken, 1)
	assert.Equal(t, decoys[2].Path, broken[0].SubjectPath)
	assert.False(t, restarted.Ledger().Contains(decoys[2].Path), "tampered entries are not re-admitted")
}

func TestDecoyService_RedeployRewritesTamperedDecoy(t *testing.T) {
	ds, dir := newTestDecoyService(t)
	store := &memoryLedgerStore{}

	decoys, err := ds.Deploy(domain.DefaultDecoyNames, ".txt", true)
	require.NoError(t, err)
	require.NoError(t, ds.Persist(context.Background(), store))

	tampered := decoys[0]
	appendToFile(t, tampered.Path, []byte("ENCRYPTED_DATA_JUNK"))

	restarted := NewDecoyService(dir, domain.DefaultSizeRange, zerolog.Nop())
	_, broken, err := restarted.Restore(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, broken, 1)

	redeployed, err := restarted.Deploy(domain.DefaultDecoyNames, ".txt", false)
	require.NoError(t, err)
	require.Len(t, redeployed, 3)

	entry, ok := restarted.Ledger().Lookup(tampered.Path)
	require.True(t, ok)
	assert.NotEqual(t, tampered.Token, entry.Token, "tampered decoy gets a fresh token")
	assert.NotContains(t, entry.Token, "ENCRYPTED_DATA_JUNK")
	assert.True(t, restarted.VerifyCanary(tampered.Path))

	content, err := os.ReadFile(tampered.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "ENCRYPTED_DATA_JUNK")

	intact, ok := restarted.Ledger().Lookup(decoys[1].Path)
	require.True(t, ok)
	assert.Equal(t, decoys[1].Token, intact.Token, "intact decoys keep their token")
	assert.Empty(t, restarted.CheckAll())
}

func TestDecoyService_Cleanup(t *testing.T) {
	ds, _ := newTestDecoyService(t)

	decoys, err := ds.Deploy(domain.DefaultDecoyNames, ".txt", true)
	require.NoError(t, err)

	ds.Cleanup()

	assert.Zero(t, ds.Ledger().Len())
	for _, decoy := range decoys {
		_, err := os.Stat(decoy.Path)
		assert.True(t, os.IsNotExist(err))
	}
	assert.Equal(t, 0, ds.Stats()["total_decoys"])
}
