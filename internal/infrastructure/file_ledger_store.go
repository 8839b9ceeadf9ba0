package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

type ledgerDocument struct {
	Version int                `json:"version"`
	SavedAt time.Time          `json:"saved_at"`
	Decoys  []domain.DecoyFile `json:"decoys"`
}

// FileLedgerStore persists the canary ledger as a JSON document
type FileLedgerStore struct {
	path string
}

// NewFileLedgerStore creates a store at path. The file is created on first Save.
func NewFileLedgerStore(path string) *FileLedgerStore {
	return &FileLedgerStore{path: path}
}

// Save writes the ledger atomically
func (s *FileLedgerStore) Save(_ context.Context, decoys []domain.DecoyFile) error {
	doc := ledgerDocument{Version: 1, SavedAt: time.Now().UTC(), Decoys: decoys}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create ledger directory: %v", domain.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write ledger: %v", domain.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync ledger: %v", domain.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close ledger: %v", domain.ErrIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replace ledger: %v", domain.ErrIO, err)
	}
	return nil
}

// Load reads the ledger. A missing file yields an empty ledger.
func (s *FileLedgerStore) Load(_ context.Context) ([]domain.DecoyFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read ledger: %v", domain.ErrIO, err)
	}

	var doc ledgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", s.path, err)
	}
	return doc.Decoys, nil
}
