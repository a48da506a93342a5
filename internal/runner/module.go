package runner

import (
	"context"

	"go.uber.org/fx"

	"futures_bot/internal/config"
	"futures_bot/internal/exchange"
	"futures_bot/internal/journal"
	"futures_bot/internal/lifecycle"
	"futures_bot/internal/modules/health/service"
	"futures_bot/internal/notify"
	"futures_bot/internal/risk"
	"futures_bot/internal/strategy"
	"futures_bot/internal/tracker"
)

func newFusion(c *exchange.MexcClient, cfg *config.Config) *strategy.Fusion {
	return strategy.NewFusion(c,
		strategy.FusionConfig{
			Interval: cfg.Strategy.KlineInterval,
			Limit:    cfg.Strategy.KlineLimit,
		},
		strategy.NewMomentum(),
		strategy.NewBreakout(cfg.Strategy.BreakoutVolumeFactor),
	)
}

func newManager(cfg *config.Config, c *exchange.MexcClient, t *tracker.Tracker, sink notify.Sink) *lifecycle.Manager {
	return lifecycle.NewManager(lifecycle.Config{
		Risk: risk.Config{
			StopLossPct:     cfg.Risk.StopLossPct,
			TakeProfitPct:   cfg.Risk.TakeProfitPct,
			TrailingStopPct: cfg.Risk.TrailingStopPct,
		},
		MaxOpenPositions:     cfg.Risk.MaxOpenPositions,
		CloseOnReverseSignal: cfg.Risk.CloseOnReverseSignal,
		MinProfitRoiForTrail: cfg.Risk.MinProfitRoiForTrail,
		TrailDropFromMaxRoi:  cfg.Risk.TrailDropFromMaxRoi,
		Leverage:             cfg.Trading.Leverage,
		PositionSize:         cfg.Trading.PositionSize,
		OpenType:             cfg.Trading.OpenType,
		AttachStops:          cfg.Trading.AttachStops,
	}, c, t, sink)
}

type schedulerIn struct {
	fx.In

	Config  *config.Config
	Scanner *exchange.Scanner
	Client  *exchange.MexcClient
	Feed    *exchange.PriceFeed
	Fusion  *strategy.Fusion
	Tracker *tracker.Tracker
	Manager *lifecycle.Manager
	Journal journal.Journal
	State   *service.State
	Sink    notify.Sink
}

func newScheduler(in schedulerIn) *Scheduler {
	return NewScheduler(Config{
		CycleDelay: in.Config.Runner.CycleDelay,
		BatchSize:  in.Config.Runner.BatchSize,
	}, Deps{
		Universe: in.Scanner,
		Signals:  in.Fusion,
		Broker:   in.Client,
		Tracker:  in.Tracker,
		Manager:  in.Manager,
		Prices:   in.Feed,
		Journal:  in.Journal,
		Health:   in.State,
		Sink:     in.Sink,
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newFusion,
			newManager,
			newScheduler,
		),
		fx.Invoke(func(lc fx.Lifecycle, s *Scheduler, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					s.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					s.Stop()
					return nil
				},
			})
		}),
	)
}
