package exchange

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"futures_bot/internal/helper"
	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

const (
	pathOpenPositions = "/api/v1/private/position/open_positions"
	pathSubmitOrder   = "/api/v1/private/order/submit"
)

// ErrPositionGone — закрывать нечего, позиции на бирже уже нет.
var ErrPositionGone = errors.New("mexc: position not found")

type positionDTO struct {
	PositionID   flexID    `json:"positionId"`
	ID           flexID    `json:"id"`
	Symbol       string    `json:"symbol"`
	ContractCode string    `json:"contractCode"`
	PositionType int       `json:"positionType"`
	OpenType     int       `json:"openType"`
	HoldVol      flexFloat `json:"holdVol"`

	HoldAvgPrice flexFloat `json:"holdAvgPrice"`
	OpenAvgPrice flexFloat `json:"openAvgPrice"`
	OpenPriceAvg flexFloat `json:"openPriceAvg"`
	AvgPrice     flexFloat `json:"avgPrice"`
	OpenPrice    flexFloat `json:"openPrice"`

	IM          flexFloat `json:"im"`
	OIM         flexFloat `json:"oim"`
	Leverage    flexFloat `json:"leverage"`
	ProfitRatio flexFloat `json:"profitRatio"`
}

func (d positionDTO) raw() models.RawPosition {
	id := string(d.PositionID)
	if id == "" {
		id = string(d.ID)
	}
	return models.RawPosition{
		PositionID:   id,
		Symbol:       d.Symbol,
		ContractCode: d.ContractCode,
		PositionType: d.PositionType,
		HoldVol:      float64(d.HoldVol),
		HoldAvgPrice: float64(d.HoldAvgPrice),
		OpenAvgPrice: float64(d.OpenAvgPrice),
		OpenPriceAvg: float64(d.OpenPriceAvg),
		AvgPrice:     float64(d.AvgPrice),
		OpenPrice:    float64(d.OpenPrice),
		IM:           float64(d.IM),
		OIM:          float64(d.OIM),
		Leverage:     float64(d.Leverage),
		ProfitRatio:  float64(d.ProfitRatio),
	}
}

type orderBody struct {
	Symbol          string   `json:"symbol"`
	Price           float64  `json:"price"`
	Vol             float64  `json:"vol"`
	Side            int      `json:"side"`
	Type            int      `json:"type"`
	OpenType        int      `json:"openType"`
	Leverage        int      `json:"leverage"`
	PositionID      int64    `json:"positionId,omitempty"`
	StopLossPrice   *float64 `json:"stopLossPrice,omitempty"`
	TakeProfitPrice *float64 `json:"takeProfitPrice,omitempty"`
}

func (m *MexcClient) positions(ctx context.Context) ([]positionDTO, error) {
	p, err := m.do(ctx, "open_positions", request{method: http.MethodGet, path: pathOpenPositions, signed: true})
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[positionDTO](p)
	if err != nil {
		return nil, errors.Wrap(err, "mexc open_positions")
	}
	return dtos, nil
}

// OpenPositions — сырые открытые позиции аккаунта.
func (m *MexcClient) OpenPositions(ctx context.Context) ([]models.RawPosition, error) {
	dtos, err := m.positions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.RawPosition, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.raw())
	}
	return out, nil
}

// SubmitOrder — рыночный ордер на открытие. Объём режется вниз до шага
// контракта; стопы уходят в ордер только если заданы в req.Stops.
func (m *MexcClient) SubmitOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	vol, err := m.orderVolume(ctx, req.Symbol, req.Volume)
	if err != nil {
		return "", err
	}

	body := orderBody{
		Symbol:   req.Symbol,
		Vol:      vol,
		Side:     models.OpenSide(req.Side),
		Type:     models.OrderTypeMarket,
		OpenType: req.OpenType,
		Leverage: req.Leverage,
	}
	if req.Stops != nil {
		if req.Stops.StopLossPrice > 0 {
			sl := req.Stops.StopLossPrice
			body.StopLossPrice = &sl
		}
		if req.Stops.TakeProfitPrice != nil && *req.Stops.TakeProfitPrice > 0 {
			tp := *req.Stops.TakeProfitPrice
			body.TakeProfitPrice = &tp
		}
	}
	return m.submit(ctx, "submit_open", body)
}

// ClosePosition перечитывает позицию и закрывает весь holdVol рыночным ордером.
func (m *MexcClient) ClosePosition(ctx context.Context, symbol string, side models.Direction) (string, error) {
	dtos, err := m.positions(ctx)
	if err != nil {
		return "", err
	}

	wantType := 1
	if side == models.Short {
		wantType = 2
	}
	for _, d := range dtos {
		sym := d.Symbol
		if sym == "" {
			sym = d.ContractCode
		}
		if sym != symbol || d.PositionType != wantType || d.HoldVol <= 0 {
			continue
		}

		body := orderBody{
			Symbol:   symbol,
			Vol:      float64(d.HoldVol),
			Side:     models.CloseSide(side),
			Type:     models.OrderTypeMarket,
			OpenType: d.OpenType,
			Leverage: int(d.Leverage),
		}
		if body.OpenType == 0 {
			body.OpenType = models.OpenTypeIsolated
		}
		id := string(d.PositionID)
		if id == "" {
			id = string(d.ID)
		}
		if pid, err := strconv.ParseInt(id, 10, 64); err == nil {
			body.PositionID = pid
		}
		return m.submit(ctx, "submit_close", body)
	}
	return "", errors.Wrapf(ErrPositionGone, "%s %s", symbol, side)
}

func (m *MexcClient) orderVolume(ctx context.Context, symbol string, vol float64) (float64, error) {
	ct, ok, err := m.contracts.Get(ctx, symbol)
	switch {
	case err != nil:
		logger.Warn("[OPEN] %s contract info unavailable, raw volume %.4f: %v", symbol, vol, err)
	case ok:
		if ct.VolUnit > 0 {
			vol = helper.RoundDownToTick(vol, ct.VolUnit)
		}
		if ct.MinVol > 0 && vol < ct.MinVol {
			return 0, errors.Errorf("mexc order %s: volume %.4f below min %.4f", symbol, vol, ct.MinVol)
		}
	}
	if vol <= 0 {
		return 0, errors.Errorf("mexc order %s: volume must be positive", symbol)
	}
	return vol, nil
}

func (m *MexcClient) submit(ctx context.Context, op string, body orderBody) (string, error) {
	b, err := sonic.Marshal(body)
	if err != nil {
		return "", errors.Wrapf(err, "mexc %s: marshal", op)
	}
	logger.Debug("[ORDER] %s %s", op, string(b))

	p, err := m.do(ctx, op, request{method: http.MethodPost, path: pathSubmitOrder, body: b, signed: true})
	if err != nil {
		return "", err
	}
	return orderID(p)
}

// orderID — data бывает числом, строкой или объектом {orderId}.
func orderID(p payload) (string, error) {
	switch p.kind {
	case payloadEmpty:
		return "", nil
	case payloadScalar:
		var id flexID
		if err := id.UnmarshalJSON(p.data); err != nil {
			return "", err
		}
		return string(id), nil
	case payloadObject:
		var o struct {
			OrderID flexID `json:"orderId"`
		}
		if err := sonic.Unmarshal(p.data, &o); err != nil {
			return "", decodeErr("order: %v", err)
		}
		return string(o.OrderID), nil
	default:
		return "", decodeErr("%s where order id expected", p.kind)
	}
}
