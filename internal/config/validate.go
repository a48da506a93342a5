package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"futures_bot/internal/models"
)

// минимальная длина ряда для индикаторов (MACD 26+9-1)
const minKlineLimit = 34

// Validate проверяет ключи и параметры риска.
func (c *Config) Validate() error {
	switch {
	case c.Exchange.APIKey == "":
		return &models.ConfigurationError{Field: "MEXC_API_KEY", Reason: "is required"}
	case c.Exchange.APISecret == "":
		return &models.ConfigurationError{Field: "MEXC_API_SECRET", Reason: "is required"}
	case c.Exchange.BaseURL == "":
		return &models.ConfigurationError{Field: "FUTURES_BASE_URL", Reason: "is required"}
	case c.Exchange.HTTPRetries < 0:
		return &models.ConfigurationError{Field: "HTTP_RETRIES", Reason: "must be >= 0"}

	case c.Risk.StopLossPct <= 0 || c.Risk.StopLossPct >= 1:
		return &models.ConfigurationError{Field: "STOP_LOSS_PCT", Reason: "must be in (0, 1)"}
	case c.Risk.TakeProfitPct < 0:
		return &models.ConfigurationError{Field: "TAKE_PROFIT_PCT", Reason: "must be >= 0"}
	case c.Risk.TrailingStopPct < 0 || c.Risk.TrailingStopPct >= 1:
		return &models.ConfigurationError{Field: "TRAILING_STOP_PCT", Reason: "must be in [0, 1)"}
	case c.Risk.MaxOpenPositions < 1:
		return &models.ConfigurationError{Field: "RISK_MAX_OPEN_POSITIONS", Reason: "must be >= 1"}
	case c.Risk.MinProfitRoiForTrail < 0:
		return &models.ConfigurationError{Field: "MIN_PROFIT_ROI_FOR_TRAIL", Reason: "must be >= 0"}
	case c.Risk.TrailDropFromMaxRoi <= 0:
		return &models.ConfigurationError{Field: "TRAIL_DROP_FROM_MAX_ROI", Reason: "must be > 0"}

	case c.Trading.Leverage < 1:
		return &models.ConfigurationError{Field: "LEVERAGE", Reason: "must be >= 1"}
	case c.Trading.PositionSize <= 0:
		return &models.ConfigurationError{Field: "POSITION_SIZE", Reason: "must be > 0"}
	case c.Trading.OpenType != models.OpenTypeIsolated && c.Trading.OpenType != models.OpenTypeCross:
		return &models.ConfigurationError{Field: "OPEN_TYPE", Reason: "must be 1 (isolated) or 2 (cross)"}

	case c.Strategy.BreakoutVolumeFactor <= 0:
		return &models.ConfigurationError{Field: "STRATEGY_BREAKOUT_VOL_FACTOR", Reason: "must be > 0"}
	case c.Strategy.KlineInterval == "":
		return &models.ConfigurationError{Field: "KLINE_INTERVAL", Reason: "is required"}
	case c.Strategy.KlineLimit < minKlineLimit:
		return &models.ConfigurationError{Field: "KLINE_LIMIT", Reason: "must be >= 34"}

	case c.Scanner.MinVolumeUSD < 0 || c.Scanner.MaxVolumeUSD < c.Scanner.MinVolumeUSD:
		return &models.ConfigurationError{Field: "STRATEGY_MAX_VOLUME_USD", Reason: "volume band is empty"}
	case c.Scanner.TopN < 1:
		return &models.ConfigurationError{Field: "SCAN_TOP_N", Reason: "must be >= 1"}

	case c.Runner.BatchSize < 1:
		return &models.ConfigurationError{Field: "BATCH_SIZE", Reason: "must be >= 1"}
	case c.Runner.CycleDelay <= 0:
		return &models.ConfigurationError{Field: "CYCLE_DELAY", Reason: "must be > 0"}
	}
	return nil
}

// Dump — эффективный конфиг в yaml без секретов, для стартового лога.
func (c Config) Dump() (string, error) {
	c.Exchange.APIKey = redact(c.Exchange.APIKey)
	c.Exchange.APISecret = redact(c.Exchange.APISecret)
	c.Telegram.Token = redact(c.Telegram.Token)
	c.Redis.Password = redact(c.Redis.Password)
	c.DB = redact(c.DB)

	out, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "marshal config")
	}
	return string(out), nil
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
