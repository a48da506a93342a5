package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"futures_bot/internal/models"
)

func setCreds(t *testing.T) {
	t.Helper()
	t.Setenv("MEXC_API_KEY", "key")
	t.Setenv("MEXC_API_SECRET", "secret")
	t.Setenv(configFilePathENV, "missing.yaml")
}

func TestLoadDefaults(t *testing.T) {
	setCreds(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Risk.StopLossPct != 0.01 || cfg.Risk.TrailingStopPct != 0.005 {
		t.Errorf("risk defaults: %+v", cfg.Risk)
	}
	if cfg.Risk.MaxOpenPositions != 3 || !cfg.Risk.CloseOnReverseSignal {
		t.Errorf("risk defaults: %+v", cfg.Risk)
	}
	if cfg.Risk.TakeProfitPct != 0 {
		t.Errorf("take profit must be off by default, got %v", cfg.Risk.TakeProfitPct)
	}
	if cfg.Strategy.KlineLimit != 200 || cfg.Strategy.KlineInterval != "1m" {
		t.Errorf("strategy defaults: %+v", cfg.Strategy)
	}
	if cfg.Runner.BatchSize != 10 {
		t.Errorf("batch size = %d", cfg.Runner.BatchSize)
	}
	if cfg.Exchange.BaseURL != "https://contract.mexc.com" {
		t.Errorf("base url = %s", cfg.Exchange.BaseURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setCreds(t)
	t.Setenv("STOP_LOSS_PCT", "0.02")
	t.Setenv("TAKE_PROFIT_PCT", "0.03")
	t.Setenv("RISK_MAX_OPEN_POSITIONS", "5")
	t.Setenv("CLOSE_ON_REVERSE_SIGNAL", "0")
	t.Setenv("CYCLE_DELAY", "30s")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Risk.StopLossPct != 0.02 || cfg.Risk.TakeProfitPct != 0.03 {
		t.Errorf("pct overrides: %+v", cfg.Risk)
	}
	if cfg.Risk.MaxOpenPositions != 5 {
		t.Errorf("max open = %d", cfg.Risk.MaxOpenPositions)
	}
	if cfg.Risk.CloseOnReverseSignal {
		t.Errorf("CLOSE_ON_REVERSE_SIGNAL=0 must disable reverse close")
	}
	if cfg.Runner.CycleDelay != 30*time.Second {
		t.Errorf("cycle delay = %v", cfg.Runner.CycleDelay)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Errorf("chat id = %d", cfg.Telegram.ChatID)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	body := "risk:\n  stop_loss_pct: 0.05\n  max_open_positions: 7\nrunner:\n  cycle_delay: 90s\n"
	if err := os.WriteFile(filepath.Join(dir, "configs", "test.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	setCreds(t)
	t.Setenv(configFilePathENV, "test.yaml")
	t.Setenv("RISK_MAX_OPEN_POSITIONS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Risk.StopLossPct != 0.05 {
		t.Errorf("file value lost: %v", cfg.Risk.StopLossPct)
	}
	if cfg.Risk.MaxOpenPositions != 2 {
		t.Errorf("env must win over file: %d", cfg.Risk.MaxOpenPositions)
	}
	if cfg.Runner.CycleDelay != 90*time.Second {
		t.Errorf("cycle delay = %v", cfg.Runner.CycleDelay)
	}
	if cfg.Runner.BatchSize != 10 {
		t.Errorf("defaults must survive partial file: %d", cfg.Runner.BatchSize)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Defaults()
		c.Exchange.APIKey = "k"
		c.Exchange.APISecret = "s"
		return c
	}

	tests := []struct {
		name  string
		mut   func(c *Config)
		field string
	}{
		{"missing key", func(c *Config) { c.Exchange.APIKey = "" }, "MEXC_API_KEY"},
		{"missing secret", func(c *Config) { c.Exchange.APISecret = "" }, "MEXC_API_SECRET"},
		{"zero stop loss", func(c *Config) { c.Risk.StopLossPct = 0 }, "STOP_LOSS_PCT"},
		{"stop loss over 100%", func(c *Config) { c.Risk.StopLossPct = 1.5 }, "STOP_LOSS_PCT"},
		{"negative take profit", func(c *Config) { c.Risk.TakeProfitPct = -0.1 }, "TAKE_PROFIT_PCT"},
		{"no positions allowed", func(c *Config) { c.Risk.MaxOpenPositions = 0 }, "RISK_MAX_OPEN_POSITIONS"},
		{"short kline series", func(c *Config) { c.Strategy.KlineLimit = 20 }, "KLINE_LIMIT"},
		{"empty volume band", func(c *Config) { c.Scanner.MaxVolumeUSD = 1 }, "STRATEGY_MAX_VOLUME_USD"},
		{"zero batch", func(c *Config) { c.Runner.BatchSize = 0 }, "BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mut(&c)
			err := c.Validate()
			var ce *models.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %s, want %s", ce.Field, tt.field)
			}
		})
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("defaults with creds must be valid: %v", err)
	}
}

func TestDumpRedactsSecrets(t *testing.T) {
	c := Defaults()
	c.Exchange.APIKey = "very-secret-key"
	c.Telegram.Token = "bot-token"

	out, err := c.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Contains(out, "very-secret-key") || strings.Contains(out, "bot-token") {
		t.Fatalf("secrets leaked:\n%s", out)
	}
	if !strings.Contains(out, "stop_loss_pct") {
		t.Errorf("dump misses fields:\n%s", out)
	}
}
