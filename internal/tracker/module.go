package tracker

import (
	"context"

	"go.uber.org/fx"

	"futures_bot/internal/config"
	"futures_bot/pkg/logger"
)

// newStore: redis, если задан REDIS_ADDR, иначе память процесса.
func newStore(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (Store, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("[TRACK] REDIS_ADDR not set, tracker state kept in memory")
		return NewMemoryStore(), nil
	}

	rdb, err := NewRedisClient(ctx, RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return rdb.Close()
		},
	})
	logger.Info("[TRACK] tracker state in redis %s", cfg.Redis.Addr)
	return NewRedisStore(rdb), nil
}

func newTracker(cfg *config.Config, store Store) *Tracker {
	return New(cfg.Risk.TrailingStopPct, store)
}

var _ Store = (*RedisStore)(nil)

func Module() fx.Option {
	return fx.Module("tracker",
		fx.Provide(
			newStore,
			newTracker,
		),
	)
}
