package risk

import (
	"futures_bot/internal/helper"
	"futures_bot/internal/models"
)

// Config — проценты задаются долями: 0.01 = 1%.
type Config struct {
	StopLossPct     float64
	TakeProfitPct   float64 // 0 — тейк не выставляется
	TrailingStopPct float64 // 0 — трейлинг выключен
}

// ComputeStops считает уровни от цены входа. Для FLAT ok=false.
func ComputeStops(entryPrice float64, side models.Direction, cfg Config) (models.RiskParameters, bool) {
	var sign float64
	switch side {
	case models.Long:
		sign = 1
	case models.Short:
		sign = -1
	default:
		return models.RiskParameters{}, false
	}

	rp := models.RiskParameters{
		StopLossPrice: helper.Round6(entryPrice * (1 - sign*cfg.StopLossPct)),
	}
	if cfg.TakeProfitPct > 0 {
		tp := helper.Round6(entryPrice * (1 + sign*cfg.TakeProfitPct))
		rp.TakeProfitPrice = &tp
	}
	if cfg.TrailingStopPct > 0 {
		trail := helper.Round6(entryPrice * (1 - sign*cfg.TrailingStopPct))
		rp.TrailingStopPrice = &trail
	}
	return rp, true
}

// CalculateTrailingStop — новый уровень трейлинга, только если цена
// обновила экстремум: выше highest для LONG, ниже lowest для SHORT.
func CalculateTrailingStop(currentPrice float64, side models.Direction, highest, lowest, pct float64) (float64, bool) {
	if pct <= 0 || currentPrice <= 0 {
		return 0, false
	}
	switch side {
	case models.Long:
		if currentPrice > highest {
			return helper.Round6(currentPrice * (1 - pct)), true
		}
	case models.Short:
		if currentPrice < lowest {
			return helper.Round6(currentPrice * (1 + pct)), true
		}
	}
	return 0, false
}

// ShouldCloseOnReverseSignal — сигнал смотрит против открытой позиции.
func ShouldCloseOnReverseSignal(side, signal models.Direction, enabled bool) bool {
	if !enabled {
		return false
	}
	return (side == models.Long && signal == models.Short) ||
		(side == models.Short && signal == models.Long)
}

// TrailingStopHit — цена дошла до трейлинг-стопа.
func TrailingStopHit(side models.Direction, price, stop float64) bool {
	if price <= 0 || stop <= 0 {
		return false
	}
	switch side {
	case models.Long:
		return price <= stop
	case models.Short:
		return price >= stop
	}
	return false
}

// ShouldTakeProfit — ROI выше порога и откатился от максимума на dropFromMax п.п.
func ShouldTakeProfit(roi float64, maxRoi *float64, minProfitRoi, dropFromMax float64) bool {
	if maxRoi == nil {
		return false
	}
	return roi >= minProfitRoi && *maxRoi-roi >= dropFromMax
}
