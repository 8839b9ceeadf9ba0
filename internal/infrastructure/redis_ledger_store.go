package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/S-Axhwin/ransomwar-engine/internal/domain"
)

// DefaultRedisLedgerKey is the hash holding path -> decoy JSON
const DefaultRedisLedgerKey = "ransomtrap:ledger"

// RedisLedgerStore persists the canary ledger in a single Redis hash
type RedisLedgerStore struct {
	rdb    *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisLedgerStore connects and pings Redis
func NewRedisLedgerStore(ctx context.Context, addr, password string, db int, key string, logger zerolog.Logger) (*RedisLedgerStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisLedgerStore(rdb, key, logger), nil
}

func newRedisLedgerStore(rdb *redis.Client, key string, logger zerolog.Logger) *RedisLedgerStore {
	if key == "" {
		key = DefaultRedisLedgerKey
	}
	logger = logger.With().Str("component", "redis").Logger()
	logger.Info().Str("addr", rdb.Options().Addr).Str("key", key).Msg("ledger store connected to redis")

	return &RedisLedgerStore{rdb: rdb, key: key, logger: logger}
}

// Save replaces the stored ledger atomically
func (s *RedisLedgerStore) Save(ctx context.Context, decoys []domain.DecoyFile) error {
	fields := make(map[string]interface{}, len(decoys))
	for _, decoy := range decoys {
		data, err := json.Marshal(decoy)
		if err != nil {
			return fmt.Errorf("failed to marshal decoy %s: %w", decoy.Path, err)
		}
		fields[decoy.Path] = data
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger to redis: %w", err)
	}

	s.logger.Debug().Int("decoys", len(decoys)).Msg("ledger saved")
	return nil
}

// Load reads the stored ledger. Undecodable entries are skipped.
func (s *RedisLedgerStore) Load(ctx context.Context) ([]domain.DecoyFile, error) {
	values, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger from redis: %w", err)
	}

	decoys := make([]domain.DecoyFile, 0, len(values))
	for path, raw := range values {
		var decoy domain.DecoyFile
		if err := json.Unmarshal([]byte(raw), &decoy); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping corrupt ledger entry")
			continue
		}
		decoys = append(decoys, decoy)
	}
	sort.Slice(decoys, func(i, j int) bool { return decoys[i].Path < decoys[j].Path })

	return decoys, nil
}

// Close closes the client
func (s *RedisLedgerStore) Close() error {
	return s.rdb.Close()
}
