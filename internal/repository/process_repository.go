package repository

import (
	"context"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// ProcessInspector resolves and terminates host processes.
// Implementations must return errors wrapping domain.ErrProcessNotFound or
// domain.ErrAccessDenied so callers can tell the two apart.
type ProcessInspector interface {
	FindByPID(ctx context.Context, pid int) (*domain.Process, error)
	Terminate(ctx context.Context, pid int) error
	// FindHolders lists processes that currently have path open
	FindHolders(ctx context.Context, path string) ([]*domain.Process, error)
}
