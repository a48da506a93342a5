package models

// RawPosition — позиция в том виде, как её вернула биржа.
// Поля-алиасы цены входа и маржи разбирает трекер.
type RawPosition struct {
	PositionID   string
	Symbol       string
	ContractCode string
	PositionType int // 1 long, 2 short
	HoldVol      float64

	HoldAvgPrice float64
	OpenAvgPrice float64
	OpenPriceAvg float64
	AvgPrice     float64
	OpenPrice    float64

	IM       float64
	OIM      float64
	Leverage float64

	ProfitRatio float64
}

// Position — нормализованная открытая позиция, одна на символ.
type Position struct {
	Symbol     string
	PositionID string
	Side       Direction
	HoldVol    float64
	EntryPrice float64
	MarginUsed float64
	Leverage   float64
	Notional   float64

	CurrentPrice  float64 // 0, если цены нет
	UnrealizedPnl float64
	Roi           float64 // в процентах от маржи

	MaxRoi            *float64
	HighestPrice      float64
	LowestPrice       float64
	TrailingStopPrice *float64
}

// RiskParameters — уровни, посчитанные на входе.
type RiskParameters struct {
	StopLossPrice     float64
	TakeProfitPrice   *float64
	TrailingStopPrice *float64
}

// Коды стороны ордера MEXC.
const (
	OrderSideOpenLong   = 1
	OrderSideCloseShort = 2
	OrderSideOpenShort  = 3
	OrderSideCloseLong  = 4

	OrderTypeMarket = 5

	OpenTypeIsolated = 1
	OpenTypeCross    = 2
)

// OrderRequest — заявка на открытие позиции.
type OrderRequest struct {
	Symbol   string
	Side     Direction
	Volume   float64
	Leverage int
	OpenType int
	Stops    *RiskParameters // nil — без SL/TP в ордере
}

// OpenSide переводит направление в код стороны открытия.
func OpenSide(d Direction) int {
	if d == Short {
		return OrderSideOpenShort
	}
	return OrderSideOpenLong
}

// CloseSide переводит сторону позиции в код закрытия.
func CloseSide(d Direction) int {
	if d == Short {
		return OrderSideCloseShort
	}
	return OrderSideCloseLong
}
