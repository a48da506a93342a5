package strategy

import (
	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

// Evaluator — одна стратегия: ряд + снимок индикаторов → сигнал.
type Evaluator interface {
	Name() string
	Evaluate(series []models.Candle, snap indicators.Snapshot) models.Signal
}

// Pick выбирает сигнал с максимальной уверенностью среди не-FLAT.
// При равенстве выигрывает более ранний кандидат (порядок = приоритет).
func Pick(candidates []models.Signal) models.Signal {
	best := -1
	for i, c := range candidates {
		if c.Direction == models.Flat || c.Direction == "" {
			continue
		}
		if best < 0 || c.Confidence > candidates[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return models.Signal{Direction: models.Flat}
	}
	return candidates[best]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
