package helper

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// PricePlaces — точность цен стопов.
const PricePlaces = 6

// Round — округление half-up до places знаков через decimal,
// без артефактов float (1.0049999 и т.п.).
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func Round6(v float64) float64 { return Round(v, PricePlaces) }

// MexcInterval переводит таймфрейм в формат kline MEXC (Min1, Hour4 ...).
func MexcInterval(raw string) string {
	s := strings.TrimSpace(raw)
	switch s {
	case "1M":
		return "Month1"
	}
	switch strings.ToLower(s) {
	case "1m":
		return "Min1"
	case "5m":
		return "Min5"
	case "15m":
		return "Min15"
	case "30m":
		return "Min30"
	case "60m", "1h":
		return "Min60"
	case "4h":
		return "Hour4"
	case "8h":
		return "Hour8"
	case "1d":
		return "Day1"
	case "1w":
		return "Week1"
	default:
		return s
	}
}

// IntervalSeconds — длительность таймфрейма в секундах, 0 если неизвестен.
func IntervalSeconds(raw string) int64 {
	switch MexcInterval(raw) {
	case "Min1":
		return 60
	case "Min5":
		return 300
	case "Min15":
		return 900
	case "Min30":
		return 1800
	case "Min60":
		return 3600
	case "Hour4":
		return 4 * 3600
	case "Hour8":
		return 8 * 3600
	case "Day1":
		return 86400
	case "Week1":
		return 7 * 86400
	case "Month1":
		return 30 * 86400
	default:
		return 0
	}
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return Round(steps*tick, 12)
}

func RoundUpToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Ceil(px/tick - 1e-12)
	return Round(steps*tick, 12)
}
