package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

func TestFileLedgerStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ledger.json")
	store := NewFileLedgerStore(path)
	ctx := context.Background()

	decoys := []domain.DecoyFile{
		{Path: "/d/passwords.docx", Token: "t-1", SizeBytes: 5120, Extension: ".docx", CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{Path: "/d/salary_data.docx", Token: "t-2", SizeBytes: 8192, Extension: ".docx", CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	require.NoError(t, store.Save(ctx, decoys))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, decoys, loaded)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".ledger-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileLedgerStore_SaveReplaces(t *testing.T) {
	store := NewFileLedgerStore(filepath.Join(t.TempDir(), "ledger.json"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []domain.DecoyFile{{Path: "/a", Token: "1"}}))
	require.NoError(t, store.Save(ctx, nil))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileLedgerStore_MissingFile(t *testing.T) {
	store := NewFileLedgerStore(filepath.Join(t.TempDir(), "absent.json"))

	loaded, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileLedgerStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileLedgerStore(path).Load(context.Background())

	assert.Error(t, err)
}
