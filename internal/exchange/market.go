package exchange

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"futures_bot/internal/helper"
	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

const (
	pathContracts = "/api/v1/contract/detail"
	pathTickers   = "/api/v1/contract/ticker"
	pathKline     = "/api/v1/contract/kline/"

	klineEmptyRetries = 3
)

// Ticker — нормализованный тикер контракта.
type Ticker struct {
	Symbol    string
	LastPrice float64
	VolumeUSD float64
	Change24  float64
}

type tickerDTO struct {
	Symbol string `json:"symbol"`

	LastPrice flexFloat `json:"lastPrice"`
	Last      flexFloat `json:"last"`
	Close     flexFloat `json:"close"`
	Price     flexFloat `json:"price"`

	Amount24    flexFloat `json:"amount24"`
	Turnover24h flexFloat `json:"turnover24h"`
	Amount24h   flexFloat `json:"amount24h"`
	Volume24h   flexFloat `json:"volume24h"`
	Volume24    flexFloat `json:"volume24"`
	Volume      flexFloat `json:"volume"`

	RiseFallRate flexFloat `json:"riseFallRate"`
}

func (d tickerDTO) ticker() Ticker {
	return Ticker{
		Symbol:    d.Symbol,
		LastPrice: firstPositive(d.LastPrice, d.Last, d.Close, d.Price),
		// оборот в USDT; volume24 — в контрактах, это последний вариант
		VolumeUSD: firstPositive(d.Amount24, d.Turnover24h, d.Amount24h, d.Volume24h, d.Volume24, d.Volume),
		Change24:  float64(d.RiseFallRate),
	}
}

// Contract — параметры контракта, нужные для объёма и фильтра листинга.
type Contract struct {
	Symbol       string
	ContractSize float64
	MinVol       float64
	VolUnit      float64
	PriceUnit    float64
	CreatedAt    int64 // unix ms, 0 — неизвестно
}

type contractDTO struct {
	Symbol       string    `json:"symbol"`
	ContractCode string    `json:"contractCode"`
	ContractSize flexFloat `json:"contractSize"`
	MinVol       flexFloat `json:"minVol"`
	VolUnit      flexFloat `json:"volUnit"`
	PriceUnit    flexFloat `json:"priceUnit"`
	CreateTime   flexFloat `json:"createTime"`
	OpeningTime  flexFloat `json:"openingTime"`
}

func (d contractDTO) contract() Contract {
	sym := d.Symbol
	if sym == "" {
		sym = d.ContractCode
	}
	return Contract{
		Symbol:       sym,
		ContractSize: float64(d.ContractSize),
		MinVol:       float64(d.MinVol),
		VolUnit:      float64(d.VolUnit),
		PriceUnit:    float64(d.PriceUnit),
		CreatedAt:    int64(firstPositive(d.CreateTime, d.OpeningTime)),
	}
}

// Contracts — все контракты биржи, без кэша.
func (m *MexcClient) Contracts(ctx context.Context) ([]Contract, error) {
	p, err := m.do(ctx, "contracts", request{method: http.MethodGet, path: pathContracts})
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[contractDTO](p)
	if err != nil {
		return nil, errors.Wrap(err, "mexc contracts")
	}
	out := make([]Contract, 0, len(dtos))
	for _, d := range dtos {
		c := d.contract()
		if c.Symbol == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ListedContracts — контракты через кэш с TTL.
func (m *MexcClient) ListedContracts(ctx context.Context) ([]Contract, error) {
	return m.contracts.All(ctx)
}

func (m *MexcClient) Tickers(ctx context.Context) ([]Ticker, error) {
	return m.tickers(ctx, nil)
}

// Ticker — тикер одного символа.
func (m *MexcClient) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	list, err := m.tickers(ctx, url.Values{"symbol": {symbol}})
	if err != nil {
		return Ticker{}, err
	}
	for _, t := range list {
		if t.Symbol == symbol || (t.Symbol == "" && len(list) == 1) {
			t.Symbol = symbol
			return t, nil
		}
	}
	return Ticker{}, errors.Errorf("mexc ticker %s: not found", symbol)
}

func (m *MexcClient) tickers(ctx context.Context, q url.Values) ([]Ticker, error) {
	p, err := m.do(ctx, "tickers", request{method: http.MethodGet, path: pathTickers, query: q})
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[tickerDTO](p)
	if err != nil {
		return nil, errors.Wrap(err, "mexc tickers")
	}
	out := make([]Ticker, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ticker())
	}
	return out, nil
}

// Price — последняя цена по REST.
func (m *MexcClient) Price(ctx context.Context, symbol string) (float64, error) {
	t, err := m.Ticker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if t.LastPrice <= 0 {
		return 0, errors.Errorf("mexc ticker %s: no last price", symbol)
	}
	return t.LastPrice, nil
}

type klineDTO struct {
	Time  []flexFloat `json:"time"`
	Open  []flexFloat `json:"open"`
	Close []flexFloat `json:"close"`
	High  []flexFloat `json:"high"`
	Low   []flexFloat `json:"low"`
	Vol   []flexFloat `json:"vol"`
}

// FetchSeries — последние limit свечей, старые первыми.
// Пустой ответ биржа иногда отдаёт на свежем окне — переспрашиваем.
func (m *MexcClient) FetchSeries(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{"interval": {helper.MexcInterval(interval)}}
	if secs := helper.IntervalSeconds(interval); secs > 0 && limit > 0 {
		end := m.now().Unix()
		q.Set("start", strconv.FormatInt(end-secs*int64(limit), 10))
		q.Set("end", strconv.FormatInt(end, 10))
	} else if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req := request{method: http.MethodGet, path: pathKline + url.PathEscape(symbol), query: q}

	for attempt := 0; ; attempt++ {
		p, err := m.do(ctx, "kline", req)
		if err != nil {
			return nil, err
		}
		series, err := decodeKlines(p)
		if err != nil {
			return nil, errors.Wrapf(err, "mexc kline %s", symbol)
		}
		if len(series) > 0 || attempt >= klineEmptyRetries {
			if limit > 0 && len(series) > limit {
				series = series[len(series)-limit:]
			}
			return series, nil
		}

		logger.Debug("[KLINE] %s empty series, retry %d", symbol, attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.klineRetryDelay):
		}
	}
}

func decodeKlines(p payload) ([]models.Candle, error) {
	if p.kind == payloadEmpty {
		return nil, nil
	}
	k, err := decodeObject[klineDTO](p)
	if err != nil {
		return nil, err
	}
	n := len(k.Time)
	if len(k.Open) != n || len(k.Close) != n || len(k.High) != n || len(k.Low) != n || len(k.Vol) != n {
		return nil, decodeErr("kline columns length mismatch: time=%d open=%d close=%d high=%d low=%d vol=%d",
			n, len(k.Open), len(k.Close), len(k.High), len(k.Low), len(k.Vol))
	}

	out := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		out[i] = models.Candle{
			OpenTime: int64(k.Time[i]) * 1000,
			Open:     float64(k.Open[i]),
			High:     float64(k.High[i]),
			Low:      float64(k.Low[i]),
			Close:    float64(k.Close[i]),
			Volume:   float64(k.Vol[i]),
		}
	}
	return out, nil
}
