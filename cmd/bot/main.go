package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"futures_bot/internal/config"
	"futures_bot/internal/exchange"
	"futures_bot/internal/journal"
	"futures_bot/internal/modules/health"
	"futures_bot/internal/notify"
	"futures_bot/internal/runner"
	"futures_bot/internal/tracker"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

const serviceName = "futures_bot"

// observability поднимает логгер и трейсер до остальных модулей.
func observability(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	if err := logger.Init(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Tracing.Host,
		Port: cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}

	if dump, err := cfg.Dump(); err == nil {
		logger.Info("effective config:\n%s", dump)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			logger.Sync()
			return nil
		},
	})
	return nil
}

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		// invoke-и модулей идут по порядку, логгер поднимаем первым
		fx.Module("observability", fx.Invoke(observability)),
		notify.Module(),
		journal.Module(),
		exchange.Module(),
		tracker.Module(),
		health.Module(),
		runner.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
