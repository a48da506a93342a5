package notify

import (
	"context"

	"go.uber.org/fx"

	"futures_bot/internal/config"
	"futures_bot/pkg/logger"
)

type sinksIn struct {
	fx.In

	Config *config.Config
	Extra  []Sink `group:"sinks"`
}

// newSink: лог всегда, Telegram если задан токен и чат, плюс всё,
// что другие модули положили в группу "sinks".
func newSink(lc fx.Lifecycle, in sinksIn) Sink {
	sinks := []Sink{NewStdout()}

	if in.Config.Telegram.Token != "" && in.Config.Telegram.ChatID != 0 {
		tg, err := NewTelegram(in.Config.Telegram.Token, in.Config.Telegram.ChatID)
		if err != nil {
			logger.Warn("[NOTIFY] telegram disabled: %v", err)
		} else {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					tg.Start(context.Background())
					return nil
				},
				OnStop: func(context.Context) error {
					tg.Stop()
					return nil
				},
			})
			sinks = append(sinks, tg)
		}
	} else {
		logger.Info("[NOTIFY] TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID not set, notifications go to log only")
	}

	return NewMulti(append(sinks, in.Extra...)...)
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(newSink),
	)
}
