package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaSink_Validation(t *testing.T) {
	_, err := NewKafkaSink(" ", "ransomtrap-events", zerolog.Nop())
	assert.Error(t, err)

	_, err = NewKafkaSink("k1:9092", "", zerolog.Nop())
	assert.Error(t, err)

	sink, err := NewKafkaSink("k1:9092, k2:9092", "ransomtrap-events", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ransomtrap-events", sink.writer.Topic)
	assert.NoError(t, sink.Close())
}

func TestNewRedisLedgerStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisLedgerStore(ctx, "127.0.0.1:1", "", 0, "", zerolog.Nop())
	assert.ErrorContains(t, err, "failed to connect to redis")
}
