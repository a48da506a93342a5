package indicators

import (
	"futures_bot/internal/models"
)

const (
	RSIPeriod    = 14
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	VolumeWindow = 20

	// MinCandles — прогрев MACD(12,26,9).
	MinCandles = MACDSlow + MACDSignal - 1
)

// Snapshot — индикаторы на последней свече. EMA50/EMA200 = NaN, если ряд короче.
type Snapshot struct {
	Price float64
	High  float64
	Low   float64

	RSI           float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64

	EMA20  float64
	EMA50  float64
	EMA200 float64

	Volume       float64
	AvgVolume    float64
	VolumeFactor float64
}

// Compute считает снимок индикаторов по ряду свечей (старые → свежие).
func Compute(series []models.Candle) (Snapshot, error) {
	if len(series) < MinCandles {
		return Snapshot{}, &models.InsufficientDataError{Have: len(series), Need: MinCandles}
	}

	closes := make([]float64, len(series))
	volumes := make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	last := series[len(series)-1]

	line, sig, hist, ok := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	if !ok {
		return Snapshot{}, &models.InsufficientDataError{Have: len(series), Need: MinCandles}
	}

	avgVol := AvgVolume(volumes, VolumeWindow)

	return Snapshot{
		Price: last.Close,
		High:  last.High,
		Low:   last.Low,

		RSI:           RSI(closes, RSIPeriod),
		MACD:          line,
		MACDSignal:    sig,
		MACDHistogram: hist,

		EMA20:  LastEMA(closes, 20),
		EMA50:  LastEMA(closes, 50),
		EMA200: LastEMA(closes, 200),

		Volume:       last.Volume,
		AvgVolume:    avgVol,
		VolumeFactor: VolumeFactor(last.Volume, avgVol),
	}, nil
}
