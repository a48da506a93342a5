package strategy

import (
	"fmt"
	"strings"

	"futures_bot/internal/indicators"
	"futures_bot/internal/models"
)

const SourceMomentum = "momentum"

// Momentum — RSI-экстремум + MACD + EMA20, уверенность набирается бонусами.
type Momentum struct{}

func NewMomentum() *Momentum { return &Momentum{} }

func (m *Momentum) Name() string { return SourceMomentum }

func (m *Momentum) Evaluate(_ []models.Candle, s indicators.Snapshot) models.Signal {
	price := s.Price

	longSetup := s.RSI < 30 && s.MACD > s.MACDSignal && price > s.EMA20
	shortSetup := s.RSI > 70 && s.MACD < s.MACDSignal && price < s.EMA20

	switch {
	case longSetup:
		return m.long(s)
	case shortSetup:
		return m.short(s)
	}
	return models.FlatSignal(SourceMomentum)
}

func (m *Momentum) long(s indicators.Snapshot) models.Signal {
	price := s.Price
	conf := 0.5

	switch {
	case s.RSI < 20:
		conf += 0.20
	case s.RSI < 25:
		conf += 0.15
	case s.RSI < 30:
		conf += 0.10
	}

	strong := s.MACDHistogram > 0 && s.MACD > 0
	switch {
	case strong:
		conf += 0.20
	case s.MACDHistogram > 0:
		conf += 0.12
	case s.MACD > s.MACDSignal:
		conf += 0.05
	}

	trend := price > s.EMA20 && s.EMA20 > s.EMA50 && s.EMA50 > s.EMA200
	switch {
	case trend:
		conf += 0.15
	case price > s.EMA20 && s.EMA20 > s.EMA50:
		conf += 0.10
	case price > s.EMA20:
		conf += 0.05
	}

	conf += volumeBonus(s.VolumeFactor)

	parts := []string{fmt.Sprintf("RSI %.1f", s.RSI)}
	if strong {
		parts = append(parts, "MACD strong bull")
	} else {
		parts = append(parts, "MACD weak bull")
	}
	if trend {
		parts = append(parts, "uptrend")
	} else {
		parts = append(parts, "price>EMA20")
	}
	if s.VolumeFactor > 1.0 {
		parts = append(parts, fmt.Sprintf("vol %.2fx", s.VolumeFactor))
	}

	return models.Signal{
		Direction:  models.Long,
		Confidence: clamp01(conf),
		Reason:     strings.Join(parts, ", "),
		Source:     SourceMomentum,
	}
}

func (m *Momentum) short(s indicators.Snapshot) models.Signal {
	price := s.Price
	conf := 0.5

	switch {
	case s.RSI > 80:
		conf += 0.20
	case s.RSI > 75:
		conf += 0.15
	case s.RSI > 70:
		conf += 0.10
	}

	strong := s.MACDHistogram < 0 && s.MACD < 0
	switch {
	case strong:
		conf += 0.20
	case s.MACDHistogram < 0:
		conf += 0.12
	case s.MACD < s.MACDSignal:
		conf += 0.05
	}

	trend := price < s.EMA20 && s.EMA20 < s.EMA50 && s.EMA50 < s.EMA200
	switch {
	case trend:
		conf += 0.15
	case price < s.EMA20 && s.EMA20 < s.EMA50:
		conf += 0.10
	case price < s.EMA20:
		conf += 0.05
	}

	conf += volumeBonus(s.VolumeFactor)

	parts := []string{fmt.Sprintf("RSI %.1f", s.RSI)}
	if strong {
		parts = append(parts, "MACD strong bear")
	} else {
		parts = append(parts, "MACD weak bear")
	}
	if trend {
		parts = append(parts, "downtrend")
	} else {
		parts = append(parts, "price<EMA20")
	}
	if s.VolumeFactor > 1.0 {
		parts = append(parts, fmt.Sprintf("vol %.2fx", s.VolumeFactor))
	}

	return models.Signal{
		Direction:  models.Short,
		Confidence: clamp01(conf),
		Reason:     strings.Join(parts, ", "),
		Source:     SourceMomentum,
	}
}

// бонус только при объёме выше среднего
func volumeBonus(factor float64) float64 {
	switch {
	case factor > 1.5:
		return 0.15
	case factor > 1.2:
		return 0.10
	case factor > 1.0:
		return 0.05
	}
	return 0
}
