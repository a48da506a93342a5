package exchange

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

// Markets — то, что сканеру нужно от биржи.
type Markets interface {
	Tickers(ctx context.Context) ([]Ticker, error)
	ListedContracts(ctx context.Context) ([]Contract, error)
}

type ScannerConfig struct {
	MinVolumeUSD  float64
	MaxVolumeUSD  float64 // 0 — без верхней границы
	MinListingAge time.Duration
	TopN          int // 0 — все
}

// Scanner собирает вселенную символов на цикл.
type Scanner struct {
	md  Markets
	cfg ScannerConfig
	now func() time.Time
}

func NewScanner(md Markets, cfg ScannerConfig) *Scanner {
	return &Scanner{md: md, cfg: cfg, now: time.Now}
}

// ScanMarkets: контракт с тикером, старше MinListingAge, оборот в полосе,
// сортировка по обороту по убыванию.
func (s *Scanner) ScanMarkets(ctx context.Context) ([]models.MarketInfo, error) {
	span, ctx := tracing.StartSpan(ctx, "exchange.scan")
	defer span.Finish()

	tickers, err := s.md.Tickers(ctx)
	if err != nil {
		tracing.MarkError(span, err)
		return nil, errors.Wrap(err, "scan tickers")
	}
	contracts, err := s.md.ListedContracts(ctx)
	if err != nil {
		tracing.MarkError(span, err)
		return nil, errors.Wrap(err, "scan contracts")
	}

	bySymbol := make(map[string]Ticker, len(tickers))
	for _, t := range tickers {
		if t.Symbol != "" {
			bySymbol[t.Symbol] = t
		}
	}

	nowMs := s.now().UnixMilli()
	minAgeMs := s.cfg.MinListingAge.Milliseconds()

	out := make([]models.MarketInfo, 0, len(contracts))
	var young, outOfBand int
	for _, c := range contracts {
		t, ok := bySymbol[c.Symbol]
		if !ok {
			continue
		}
		if minAgeMs > 0 && (c.CreatedAt <= 0 || nowMs-c.CreatedAt <= minAgeMs) {
			young++
			continue
		}
		if t.VolumeUSD < s.cfg.MinVolumeUSD || (s.cfg.MaxVolumeUSD > 0 && t.VolumeUSD > s.cfg.MaxVolumeUSD) {
			outOfBand++
			continue
		}
		out = append(out, models.MarketInfo{
			Symbol:    c.Symbol,
			LastPrice: t.LastPrice,
			VolumeUSD: t.VolumeUSD,
			Change24:  t.Change24,
			ListedAt:  c.CreatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VolumeUSD != out[j].VolumeUSD {
			return out[i].VolumeUSD > out[j].VolumeUSD
		}
		return out[i].Symbol < out[j].Symbol
	})
	if s.cfg.TopN > 0 && len(out) > s.cfg.TopN {
		out = out[:s.cfg.TopN]
	}

	span.SetTag("universe", len(out))
	logger.Info("[SCAN] contracts=%d tickers=%d young=%d out_of_band=%d universe=%d",
		len(contracts), len(tickers), young, outOfBand, len(out))
	return out, nil
}
