package strategy

import (
	"context"
	"fmt"

	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

// MarketData отдаёт ряд свечей по символу, свежие в конце.
type MarketData interface {
	FetchSeries(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

type FusionConfig struct {
	Interval string
	Limit    int
}

// Fusion прогоняет все стратегии на одном ряде и выбирает сильнейший сигнал.
type Fusion struct {
	md         MarketData
	cfg        FusionConfig
	evaluators []Evaluator
}

// NewFusion — порядок evaluators задаёт приоритет при равной уверенности.
func NewFusion(md MarketData, cfg FusionConfig, evaluators ...Evaluator) *Fusion {
	return &Fusion{md: md, cfg: cfg, evaluators: evaluators}
}

// Fuse возвращает итоговый сигнал по символу.
// ErrInsufficientData — если ряд слишком короткий.
func (f *Fusion) Fuse(ctx context.Context, symbol string) (models.FusedSignal, error) {
	span, ctx := tracing.StartSpan(ctx, "strategy.fuse")
	defer span.Finish()
	span.SetTag("symbol", symbol)

	series, err := f.md.FetchSeries(ctx, symbol, f.cfg.Interval, f.cfg.Limit)
	if err != nil {
		tracing.MarkError(span, err)
		return models.FusedSignal{}, fmt.Errorf("fetch series %s: %w", symbol, err)
	}

	fused, err := f.FuseSeries(symbol, series)
	if err != nil {
		tracing.MarkError(span, err)
		return models.FusedSignal{}, err
	}
	span.SetTag("direction", string(fused.Direction))
	return fused, nil
}

// FuseSeries — чистая часть Fuse без похода за свечами.
func (f *Fusion) FuseSeries(symbol string, series []models.Candle) (models.FusedSignal, error) {
	snap, err := indicators.Compute(series)
	if err != nil {
		return models.FusedSignal{}, fmt.Errorf("indicators %s: %w", symbol, err)
	}

	candidates := make([]models.Signal, 0, len(f.evaluators))
	for _, e := range f.evaluators {
		s := e.Evaluate(series, snap)
		s.Confidence = clamp01(s.Confidence)
		if s.Source == "" {
			s.Source = e.Name()
		}
		candidates = append(candidates, s)
	}

	picked := Pick(candidates)
	if picked.Direction != models.Flat {
		logger.Debug("[SIGNAL] %s %s conf=%.2f src=%s (%s)", symbol, picked.Direction, picked.Confidence, picked.Source, picked.Reason)
	}

	return models.FusedSignal{
		Symbol:     symbol,
		Signal:     picked,
		Price:      snap.Price,
		Candidates: candidates,
	}, nil
}
