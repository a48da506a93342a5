package journal

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"futures_bot/internal/config"
	"futures_bot/internal/notify"
	"futures_bot/pkg/db"
	"futures_bot/pkg/logger"
)

// журнал пишет раз в цикл, много соединений не нужно
const journalMaxConns = 4

func newJournal(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (Journal, error) {
	if cfg.DB == "" {
		logger.Info("[JOURNAL] DATABASE_DSN not set, journal disabled")
		return Noop{}, nil
	}

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN:      cfg.DB,
		MaxConns: journalMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}
	if err := poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return nil, err
	}

	txm := db.NewPgTxManager(poolMaster)
	j := NewPgJournal(txm)
	if err := j.EnsureSchema(ctx); err != nil {
		txm.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			txm.Close()
			return nil
		},
	})
	return j, nil
}

// Module — журнал в Postgres; он же получает события как синк уведомлений.
func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			newJournal,
			fx.Annotate(
				func(j Journal) notify.Sink { return j },
				fx.ResultTags(`group:"sinks"`),
			),
		),
	)
}
