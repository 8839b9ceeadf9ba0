package repository

import (
	"context"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// EventSink persists or forwards detection events
type EventSink interface {
	Write(ctx context.Context, event domain.DetectionEvent) error
	Close() error
}

// LedgerStore persists the canary ledger across restarts
type LedgerStore interface {
	Save(ctx context.Context, decoys []domain.DecoyFile) error
	Load(ctx context.Context) ([]domain.DecoyFile, error)
}
