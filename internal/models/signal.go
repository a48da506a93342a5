package models

// Direction — направление сигнала или сторона позиции.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Flat  Direction = "FLAT"
)

// Opposite возвращает противоположную сторону; для FLAT — FLAT.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Flat
	}
}

// Signal — результат одного оценщика.
type Signal struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // [0, 1]
	Reason     string    `json:"reason"`
	Source     string    `json:"source"`
}

func FlatSignal(source string) Signal {
	return Signal{Direction: Flat, Source: source}
}

// FusedSignal — итоговый сигнал по символу за цикл.
type FusedSignal struct {
	Symbol string
	Signal

	Price      float64 // close последней свечи
	Candidates []Signal
}

// Candle — одна свеча, ряды упорядочены от старых к свежим.
type Candle struct {
	OpenTime int64 // unix ms
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// MarketInfo — элемент вселенной сканера.
type MarketInfo struct {
	Symbol    string
	LastPrice float64
	VolumeUSD float64
	Change24  float64
	ListedAt  int64 // unix ms
}
