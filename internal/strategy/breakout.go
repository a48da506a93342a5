package strategy

import (
	"fmt"
	"math"

	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

const (
	SourceBreakout = "breakout"

	// BreakoutLookback — окно канала, свечей.
	BreakoutLookback = 40
)

// Breakout — пробой максимума/минимума окна с подтверждением объёмом.
type Breakout struct {
	volumeFactor float64
}

func NewBreakout(volumeFactor float64) *Breakout {
	return &Breakout{volumeFactor: volumeFactor}
}

func (b *Breakout) Name() string { return SourceBreakout }

// Evaluate сравнивает close последней свечи с каналом из предыдущих
// BreakoutLookback свечей; сама последняя свеча в канал не входит.
func (b *Breakout) Evaluate(series []models.Candle, s indicators.Snapshot) models.Signal {
	if len(series) < 2 {
		return models.FlatSignal(SourceBreakout)
	}

	window := series[:len(series)-1]
	if len(window) > BreakoutLookback {
		window = window[len(window)-BreakoutLookback:]
	}

	high, low := math.Inf(-1), math.Inf(1)
	for _, c := range window {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}

	price := s.Price
	factor := s.VolumeFactor
	if factor < b.volumeFactor {
		return models.FlatSignal(SourceBreakout)
	}

	switch {
	case price > high:
		return models.Signal{
			Direction:  models.Long,
			Confidence: breakoutConfidence(factor),
			Reason:     fmt.Sprintf("Breakout up with volume factor %.2f", factor),
			Source:     SourceBreakout,
		}
	case price < low:
		return models.Signal{
			Direction:  models.Short,
			Confidence: breakoutConfidence(factor),
			Reason:     fmt.Sprintf("Breakdown with volume factor %.2f", factor),
			Source:     SourceBreakout,
		}
	}
	return models.FlatSignal(SourceBreakout)
}

func breakoutConfidence(factor float64) float64 {
	bonus := math.Min(0.33, (factor-1)/3.5)
	return clamp01(math.Min(0.98, 0.65+bonus))
}
