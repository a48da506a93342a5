package exchange

import (
	"context"
	"time"

	"go.uber.org/fx"

	"futures_bot/internal/config"
)

// ws-цена старше этого — идём в REST
const wsPriceMaxAge = 30 * time.Second

func newClient(cfg *config.Config) *MexcClient {
	return NewMexcClient(Config{
		BaseURL:      cfg.Exchange.BaseURL,
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    cfg.Exchange.APISecret,
		Timeout:      cfg.Exchange.HTTPTimeout,
		Retries:      cfg.Exchange.HTTPRetries,
		ContractsTTL: cfg.Scanner.ContractsTTL,
	})
}

func newScanner(c *MexcClient, cfg *config.Config) *Scanner {
	return NewScanner(c, ScannerConfig{
		MinVolumeUSD:  cfg.Scanner.MinVolumeUSD,
		MaxVolumeUSD:  cfg.Scanner.MaxVolumeUSD,
		MinListingAge: cfg.Scanner.MinListingAge,
		TopN:          cfg.Scanner.TopN,
	})
}

func newPriceFeed(lc fx.Lifecycle, c *MexcClient, cfg *config.Config) *PriceFeed {
	feed := NewPriceFeed(cfg.Exchange.WSURL, c, wsPriceMaxAge)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// ctx хука живёт только на время старта
			feed.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			feed.Stop()
			return nil
		},
	})
	return feed
}

// Module поднимает REST-клиент MEXC, сканер и ws-фид цен.
func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			newClient,
			newScanner,
			newPriceFeed,
		),
	)
}
