package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"futures_bot/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDir         = "configs/"
	defaultConfigFile = "values_local.yaml"
)

// Config — вся конфигурация бота. Файл yaml необязателен, env перекрывает файл.
type Config struct {
	Exchange struct {
		APIKey      string        `yaml:"api_key"`
		APISecret   string        `yaml:"api_secret"`
		BaseURL     string        `yaml:"base_url"`
		WSURL       string        `yaml:"ws_url"`
		HTTPTimeout time.Duration `yaml:"http_timeout"`
		HTTPRetries int           `yaml:"http_retries"`
	} `yaml:"exchange"`

	Trading struct {
		Leverage     int     `yaml:"leverage"`
		PositionSize float64 `yaml:"position_size"` // объём в контрактах
		OpenType     int     `yaml:"open_type"`     // 1 isolated, 2 cross
		AttachStops  bool    `yaml:"attach_stops"`  // SL/TP прямо в ордере
	} `yaml:"trading"`

	Risk struct {
		StopLossPct          float64 `yaml:"stop_loss_pct"`
		TakeProfitPct        float64 `yaml:"take_profit_pct"` // 0 — выключен
		TrailingStopPct      float64 `yaml:"trailing_stop_pct"`
		MaxOpenPositions     int     `yaml:"max_open_positions"`
		CloseOnReverseSignal bool    `yaml:"close_on_reverse_signal"`
		MinProfitRoiForTrail float64 `yaml:"min_profit_roi_for_trail"`
		TrailDropFromMaxRoi  float64 `yaml:"trail_drop_from_max_roi"`
	} `yaml:"risk"`

	Strategy struct {
		BreakoutVolumeFactor float64 `yaml:"breakout_volume_factor"`
		KlineInterval        string  `yaml:"kline_interval"`
		KlineLimit           int     `yaml:"kline_limit"`
	} `yaml:"strategy"`

	Scanner struct {
		MinVolumeUSD  float64       `yaml:"min_volume_usd"`
		MaxVolumeUSD  float64       `yaml:"max_volume_usd"`
		MinListingAge time.Duration `yaml:"min_listing_age"`
		TopN          int           `yaml:"top_n"`
		ContractsTTL  time.Duration `yaml:"contracts_ttl"`
	} `yaml:"scanner"`

	Runner struct {
		CycleDelay time.Duration `yaml:"cycle_delay"`
		BatchSize  int           `yaml:"batch_size"`
	} `yaml:"runner"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	DB string `yaml:"db_dsn"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Tracing struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"tracing"`

	Health struct {
		Addr string `yaml:"addr"`
	} `yaml:"health"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// Defaults — значения по умолчанию до чтения файла и env.
func Defaults() Config {
	var c Config

	c.Exchange.BaseURL = "https://contract.mexc.com"
	c.Exchange.WSURL = "wss://contract.mexc.com/edge"
	c.Exchange.HTTPTimeout = 10 * time.Second
	c.Exchange.HTTPRetries = 3

	c.Trading.Leverage = 3
	c.Trading.PositionSize = 1
	c.Trading.OpenType = models.OpenTypeIsolated

	c.Risk.StopLossPct = 0.01
	c.Risk.TrailingStopPct = 0.005
	c.Risk.MaxOpenPositions = 3
	c.Risk.CloseOnReverseSignal = true
	c.Risk.MinProfitRoiForTrail = 80
	c.Risk.TrailDropFromMaxRoi = 40

	c.Strategy.BreakoutVolumeFactor = 1.5
	c.Strategy.KlineInterval = "1m"
	c.Strategy.KlineLimit = 200

	c.Scanner.MinVolumeUSD = 500_000
	c.Scanner.MaxVolumeUSD = 1_000_000
	c.Scanner.MinListingAge = 21 * 24 * time.Hour
	c.Scanner.TopN = 10
	c.Scanner.ContractsTTL = time.Minute

	c.Runner.CycleDelay = 5 * time.Minute
	c.Runner.BatchSize = 10

	c.Tracing.Port = 6831
	c.Health.Addr = ":8080"
	c.Log.Level = "info"

	return c
}

// Load читает .env, yaml-файл (если есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	fileName := os.Getenv(configFilePathENV)
	if fileName == "" {
		fileName = defaultConfigFile
	}
	if err := decodeFile(configDir+fileName, &cfg); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	applyEnv(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "open config file %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return errors.Wrapf(err, "decode config file %s", path)
	}
	return nil
}

func applyEnv(v *viper.Viper, c *Config) {
	setString(v, "MEXC_API_KEY", &c.Exchange.APIKey)
	setString(v, "MEXC_API_SECRET", &c.Exchange.APISecret)
	setString(v, "FUTURES_BASE_URL", &c.Exchange.BaseURL)
	setString(v, "WS_FUTURES_URL", &c.Exchange.WSURL)
	setDuration(v, "HTTP_TIMEOUT", &c.Exchange.HTTPTimeout)
	setInt(v, "HTTP_RETRIES", &c.Exchange.HTTPRetries)

	setInt(v, "LEVERAGE", &c.Trading.Leverage)
	setFloat(v, "POSITION_SIZE", &c.Trading.PositionSize)
	setInt(v, "OPEN_TYPE", &c.Trading.OpenType)
	setBool(v, "ATTACH_STOPS_TO_ORDER", &c.Trading.AttachStops)

	setFloat(v, "STOP_LOSS_PCT", &c.Risk.StopLossPct)
	setFloat(v, "TAKE_PROFIT_PCT", &c.Risk.TakeProfitPct)
	setFloat(v, "TRAILING_STOP_PCT", &c.Risk.TrailingStopPct)
	setInt(v, "RISK_MAX_OPEN_POSITIONS", &c.Risk.MaxOpenPositions)
	setBool(v, "CLOSE_ON_REVERSE_SIGNAL", &c.Risk.CloseOnReverseSignal)
	setFloat(v, "MIN_PROFIT_ROI_FOR_TRAIL", &c.Risk.MinProfitRoiForTrail)
	setFloat(v, "TRAIL_DROP_FROM_MAX_ROI", &c.Risk.TrailDropFromMaxRoi)

	setFloat(v, "STRATEGY_BREAKOUT_VOL_FACTOR", &c.Strategy.BreakoutVolumeFactor)
	setString(v, "KLINE_INTERVAL", &c.Strategy.KlineInterval)
	setInt(v, "KLINE_LIMIT", &c.Strategy.KlineLimit)

	setFloat(v, "STRATEGY_MIN_VOLUME_USD", &c.Scanner.MinVolumeUSD)
	setFloat(v, "STRATEGY_MAX_VOLUME_USD", &c.Scanner.MaxVolumeUSD)
	setDuration(v, "MIN_LISTING_AGE", &c.Scanner.MinListingAge)
	setInt(v, "SCAN_TOP_N", &c.Scanner.TopN)
	setDuration(v, "CONTRACTS_CACHE_TTL", &c.Scanner.ContractsTTL)

	setDuration(v, "CYCLE_DELAY", &c.Runner.CycleDelay)
	setInt(v, "BATCH_SIZE", &c.Runner.BatchSize)

	setString(v, "TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	if v.IsSet("TELEGRAM_CHAT_ID") {
		c.Telegram.ChatID = v.GetInt64("TELEGRAM_CHAT_ID")
	}

	setString(v, "DATABASE_DSN", &c.DB)

	setString(v, "REDIS_ADDR", &c.Redis.Addr)
	setString(v, "REDIS_PASSWORD", &c.Redis.Password)
	setInt(v, "REDIS_DB", &c.Redis.DB)

	setString(v, "JAEGER_HOST", &c.Tracing.Host)
	setInt(v, "JAEGER_PORT", &c.Tracing.Port)

	setString(v, "HEALTH_ADDR", &c.Health.Addr)

	setString(v, "LOG_LEVEL", &c.Log.Level)
	setBool(v, "LOG_JSON", &c.Log.JSON)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}
