package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix = "futures_bot:track:"
	stateTTL       = 7 * 24 * time.Hour
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore хранит TrackState как json в ключе на символ.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient создаёт клиента и проверяет соединение.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func stateKey(symbol string) string { return stateKeyPrefix + symbol }

func (s *RedisStore) Load(ctx context.Context, symbol string) (TrackState, bool, error) {
	data, err := s.rdb.Get(ctx, stateKey(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TrackState{}, false, nil
		}
		return TrackState{}, false, fmt.Errorf("redis: get state %s: %w", symbol, err)
	}

	var st TrackState
	if err := sonic.Unmarshal(data, &st); err != nil {
		return TrackState{}, false, fmt.Errorf("redis: unmarshal state %s: %w", symbol, err)
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, symbol string, st TrackState) error {
	data, err := sonic.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: marshal state %s: %w", symbol, err)
	}
	if err := s.rdb.Set(ctx, stateKey(symbol), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("redis: set state %s: %w", symbol, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, symbol string) error {
	if err := s.rdb.Del(ctx, stateKey(symbol)).Err(); err != nil {
		return fmt.Errorf("redis: del state %s: %w", symbol, err)
	}
	return nil
}
