package infrastructure

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

func TestProcessInspector_FindByPID(t *testing.T) {
	inspector := NewProcessInspector(zerolog.Nop())
	ctx := context.Background()

	self, err := inspector.FindByPID(ctx, os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), self.PID)
	assert.NotEmpty(t, self.Name)
	assert.True(t, self.IsRunning())

	_, err = inspector.FindByPID(ctx, 999999)
	assert.ErrorIs(t, err, domain.ErrProcessNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, pid := range []int{0, -4} {
		_, err = inspector.FindByPID(ctx, pid)
		assert.ErrorIs(t, err, domain.ErrInvalidPID)
	}
}

func TestProcessInspector_TerminateMissing(t *testing.T) {
	inspector := NewProcessInspector(zerolog.Nop())

	err := inspector.Terminate(context.Background(), 999999)

	assert.ErrorIs(t, err, domain.ErrProcessNotFound)
	assert.ErrorIs(t, inspector.Terminate(context.Background(), 0), domain.ErrInvalidPID)
}

func TestProcessInspector_FindHoldersCancelled(t *testing.T) {
	inspector := NewProcessInspector(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	holders, err := inspector.FindHolders(ctx, os.Args[0])

	assert.Error(t, err)
	assert.Empty(t, holders)
}
