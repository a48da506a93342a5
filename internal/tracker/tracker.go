package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"futures_bot/internal/models"
	"futures_bot/internal/risk"
	"futures_bot/pkg/logger"
)

// PriceLookup — свежая цена по символу.
type PriceLookup interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Tracker нормализует позиции биржи и держит между циклами
// maxRoi, экстремумы цены и трейлинг-стоп.
type Tracker struct {
	mu          sync.Mutex
	trailingPct float64
	store       Store
	now         func() time.Time

	states map[string]*TrackState
	seeds  map[string]models.RiskParameters
}

func New(trailingPct float64, store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{
		trailingPct: trailingPct,
		store:       store,
		now:         time.Now,
		states:      make(map[string]*TrackState),
		seeds:       make(map[string]models.RiskParameters),
	}
}

// Seed запоминает уровни, посчитанные при входе; применяются,
// когда позиция впервые появится в снимке биржи.
func (t *Tracker) Seed(symbol string, rp models.RiskParameters) {
	t.mu.Lock()
	t.seeds[symbol] = rp
	t.mu.Unlock()
}

// Forget сбрасывает состояние символа после закрытия.
func (t *Tracker) Forget(ctx context.Context, symbol string) {
	t.mu.Lock()
	delete(t.states, symbol)
	delete(t.seeds, symbol)
	t.mu.Unlock()

	if err := t.store.Delete(ctx, symbol); err != nil {
		logger.Error("[TRACK] %s forget: %v", symbol, err)
	}
}

// Normalize превращает сырые позиции в карту symbol → Position,
// пересчитывает PnL/ROI и двигает экстремумы. Символы, пропавшие
// из снимка, забываются.
func (t *Tracker) Normalize(ctx context.Context, raw []models.RawPosition, prices PriceLookup) map[string]*models.Position {
	out := make(map[string]*models.Position, len(raw))
	ratios := make(map[string]float64, len(raw))
	for _, r := range raw {
		p, ok := normalizeOne(r)
		if !ok {
			continue
		}
		if _, dup := out[p.Symbol]; dup {
			logger.Warn("[TRACK] %s: duplicate position %s ignored", p.Symbol, p.PositionID)
			continue
		}
		out[p.Symbol] = p
		ratios[p.Symbol] = r.ProfitRatio
	}

	// цены тянем до захвата мьютекса — это сеть
	quotes := make(map[string]float64, len(out))
	if prices != nil {
		for sym := range out {
			px, err := prices.Price(ctx, sym)
			if err != nil {
				logger.Warn("[TRACK] %s price unavailable: %v", sym, err)
				continue
			}
			if px > 0 {
				quotes[sym] = px
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for sym, p := range out {
		st := t.stateFor(ctx, p)
		t.apply(p, st, quotes[sym], ratios[sym])
		if err := t.store.Save(ctx, sym, *st); err != nil {
			logger.Error("[TRACK] %s save state: %v", sym, err)
		}
	}

	for sym := range t.states {
		if _, ok := out[sym]; ok {
			continue
		}
		delete(t.states, sym)
		if err := t.store.Delete(ctx, sym); err != nil {
			logger.Error("[TRACK] %s drop state: %v", sym, err)
		}
		logger.Info("[TRACK] %s no longer held, state dropped", sym)
	}

	return out
}

// Symbols — отсортированный список символов снимка.
func Symbols(positions map[string]*models.Position) []string {
	out := make([]string, 0, len(positions))
	for s := range positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalizeOne(r models.RawPosition) (*models.Position, bool) {
	symbol := r.Symbol
	if symbol == "" {
		symbol = r.ContractCode
	}
	if symbol == "" || r.HoldVol <= 0 {
		return nil, false
	}

	side := models.Long
	switch r.PositionType {
	case 1:
	case 2:
		side = models.Short
	default:
		logger.Warn("[TRACK] %s: unknown positionType %d, treated as LONG", symbol, r.PositionType)
	}

	margin := r.IM
	if margin <= 0 {
		margin = r.OIM
	}
	lev := r.Leverage
	if lev <= 0 {
		lev = 1
	}

	return &models.Position{
		Symbol:     symbol,
		PositionID: r.PositionID,
		Side:       side,
		HoldVol:    r.HoldVol,
		EntryPrice: firstPositive(r.HoldAvgPrice, r.OpenAvgPrice, r.OpenPriceAvg, r.AvgPrice, r.OpenPrice),
		MarginUsed: margin,
		Leverage:   lev,
		Notional:   margin * lev,
	}, true
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// stateFor возвращает состояние позиции; новая позиция (другой id или
// сторона) начинает с чистого листа. Вызывается под мьютексом.
func (t *Tracker) stateFor(ctx context.Context, p *models.Position) *TrackState {
	st, ok := t.states[p.Symbol]
	if !ok {
		loaded, found, err := t.store.Load(ctx, p.Symbol)
		if err != nil {
			logger.Error("[TRACK] %s load state: %v", p.Symbol, err)
		}
		if found {
			st = &loaded
			ok = true
		}
	}

	if ok && st.PositionID == p.PositionID && st.Side == p.Side {
		t.states[p.Symbol] = st
		return st
	}

	st = &TrackState{
		PositionID:   p.PositionID,
		Side:         p.Side,
		HighestPrice: p.EntryPrice,
		LowestPrice:  p.EntryPrice,
	}
	if seed, ok := t.seeds[p.Symbol]; ok {
		st.TrailingStopPrice = seed.TrailingStopPrice
		delete(t.seeds, p.Symbol)
	}
	t.states[p.Symbol] = st
	logger.Info("[TRACK] %s %s tracking started entry=%.6f", p.Symbol, p.Side, p.EntryPrice)
	return st
}

func (t *Tracker) apply(p *models.Position, st *TrackState, price, profitRatio float64) {
	if price > 0 && p.EntryPrice > 0 {
		pct := (price - p.EntryPrice) / p.EntryPrice
		if p.Side == models.Short {
			pct = -pct
		}
		p.CurrentPrice = price
		p.UnrealizedPnl = pct * p.Notional
	} else {
		p.UnrealizedPnl = profitRatio * p.MarginUsed
	}
	if p.MarginUsed > 0 {
		p.Roi = p.UnrealizedPnl / p.MarginUsed * 100
	}

	if st.MaxRoi == nil || p.Roi > *st.MaxRoi {
		v := p.Roi
		st.MaxRoi = &v
	}

	if price > 0 {
		// стоп считаем от прежнего экстремума, потом двигаем экстремум
		if stop, ok := risk.CalculateTrailingStop(price, p.Side, st.HighestPrice, st.LowestPrice, t.trailingPct); ok {
			st.TrailingStopPrice = tighter(p.Side, st.TrailingStopPrice, stop)
		}
		if price > st.HighestPrice {
			st.HighestPrice = price
		}
		if st.LowestPrice <= 0 || price < st.LowestPrice {
			st.LowestPrice = price
		}
	}
	st.UpdatedAt = t.now().UnixMilli()

	maxRoi := *st.MaxRoi
	p.MaxRoi = &maxRoi
	p.HighestPrice = st.HighestPrice
	p.LowestPrice = st.LowestPrice
	if st.TrailingStopPrice != nil {
		v := *st.TrailingStopPrice
		p.TrailingStopPrice = &v
	}
}

// tighter — трейлинг только подтягивается, никогда не отпускается.
func tighter(side models.Direction, cur *float64, next float64) *float64 {
	if cur == nil {
		return &next
	}
	if side == models.Short {
		if next < *cur {
			return &next
		}
		return cur
	}
	if next > *cur {
		return &next
	}
	return cur
}
