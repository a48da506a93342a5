package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"futures_bot/internal/models"
	"futures_bot/internal/risk"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

// OrderGateway — сторона биржи, которая открывает и закрывает позиции.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (string, error)
	ClosePosition(ctx context.Context, symbol string, side models.Direction) (string, error)
}

// PositionBook — трекер: уровни входа и сброс состояния после закрытия.
type PositionBook interface {
	Seed(symbol string, rp models.RiskParameters)
	Forget(ctx context.Context, symbol string)
}

// Notifier — fire-and-forget уведомления.
type Notifier interface {
	Notify(ctx context.Context, ev models.Event)
}

type Config struct {
	Risk                 risk.Config
	MaxOpenPositions     int
	CloseOnReverseSignal bool
	MinProfitRoiForTrail float64
	TrailDropFromMaxRoi  float64

	Leverage     int
	PositionSize float64
	OpenType     int
	AttachStops  bool
}

// Manager ведёт позицию по символу: NONE → PENDING_OPEN → OPEN → PENDING_CLOSE → NONE.
type Manager struct {
	cfg  Config
	gw   OrderGateway
	book PositionBook
	sink Notifier
	now  func() time.Time

	mu     sync.Mutex
	states map[string]models.State
}

func NewManager(cfg Config, gw OrderGateway, book PositionBook, sink Notifier) *Manager {
	return &Manager{
		cfg:    cfg,
		gw:     gw,
		book:   book,
		sink:   sink,
		now:    time.Now,
		states: make(map[string]models.State),
	}
}

// State — текущее состояние символа.
func (m *Manager) State(symbol string) models.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(symbol)
}

func (m *Manager) stateLocked(symbol string) models.State {
	if st, ok := m.states[symbol]; ok {
		return st
	}
	return models.StateNone
}

func (m *Manager) setLocked(symbol string, st models.State) {
	if st == models.StateNone {
		delete(m.states, symbol)
		return
	}
	m.states[symbol] = st
}

func (m *Manager) set(symbol string, st models.State) {
	m.mu.Lock()
	m.setLocked(symbol, st)
	m.mu.Unlock()
}

// Sync сверяет состояния со свежим снимком позиций биржи.
func (m *Manager) Sync(positions map[string]*models.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sym := range positions {
		if prev := m.stateLocked(sym); prev != models.StateOpen {
			if prev == models.StatePendingOpen {
				logger.Info("[OPEN] %s confirmed by exchange", sym)
			}
			m.setLocked(sym, models.StateOpen)
		}
	}

	for sym, st := range m.states {
		if _, ok := positions[sym]; ok {
			continue
		}
		switch st {
		case models.StatePendingOpen:
			logger.Warn("[OPEN] %s order not confirmed, position absent", sym)
		case models.StateOpen, models.StatePendingClose:
			logger.Info("[CLOSE] %s closed outside the bot", sym)
		}
		delete(m.states, sym)
	}
}

// OpenCount — открытые позиции плюс ещё не подтверждённые входы.
func (m *Manager) OpenCount(positions map[string]*models.Position) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(positions)
	for sym, st := range m.states {
		if st != models.StatePendingOpen {
			continue
		}
		if _, ok := positions[sym]; !ok {
			n++
		}
	}
	return n
}

// DecideExit — цепочка условий выхода, срабатывает первое:
// разворот сигнала, пробой трейлинг-стопа, откат ROI от пика.
func DecideExit(pos *models.Position, signal models.Direction, signalPrice float64, cfg Config) (string, bool) {
	if risk.ShouldCloseOnReverseSignal(pos.Side, signal, cfg.CloseOnReverseSignal) {
		return fmt.Sprintf("Reverse signal %s against %s", signal, pos.Side), true
	}

	price := pos.CurrentPrice
	if price <= 0 {
		price = signalPrice
	}
	if pos.TrailingStopPrice != nil && risk.TrailingStopHit(pos.Side, price, *pos.TrailingStopPrice) {
		return fmt.Sprintf("Trailing stop hit: price %.6f, stop %.6f", price, *pos.TrailingStopPrice), true
	}

	if risk.ShouldTakeProfit(pos.Roi, pos.MaxRoi, cfg.MinProfitRoiForTrail, cfg.TrailDropFromMaxRoi) {
		return fmt.Sprintf("Take profit: ROI %.2f%% dropped %.2f from max %.2f%%", pos.Roi, *pos.MaxRoi-pos.Roi, *pos.MaxRoi), true
	}
	return "", false
}

// ManageExit решает судьбу открытой позиции и при необходимости закрывает её.
func (m *Manager) ManageExit(ctx context.Context, pos *models.Position, sig models.FusedSignal) models.Outcome {
	span, ctx := tracing.StartSpan(ctx, "lifecycle.exit")
	defer span.Finish()
	span.SetTag("symbol", pos.Symbol)

	out := models.Outcome{Symbol: pos.Symbol, Side: pos.Side}

	reason, exit := DecideExit(pos, sig.Direction, sig.Price, m.cfg)
	if !exit {
		out.Action = models.ActionHold
		out.Reason = fmt.Sprintf("roi %.2f%%", pos.Roi)
		if pos.MaxRoi != nil {
			out.Reason += fmt.Sprintf(", max %.2f%%", *pos.MaxRoi)
		}
		return out
	}

	m.set(pos.Symbol, models.StatePendingClose)
	logger.Info("[CLOSE] %s %s: %s", pos.Symbol, pos.Side, reason)

	orderID, err := m.gw.ClosePosition(ctx, pos.Symbol, pos.Side)
	if err != nil {
		m.set(pos.Symbol, models.StateOpen)
		logger.Error("[CLOSE] %s failed: %v", pos.Symbol, err)
		m.sink.Notify(ctx, models.Event{
			Kind:   models.EventCloseFailed,
			Symbol: pos.Symbol,
			Side:   pos.Side,
			Reason: reason,
			Err:    err,
			At:     m.now(),
		})
		tracing.MarkError(span, err)
		out.Action = models.ActionError
		out.Reason = "close failed: " + reason
		out.Err = err
		return out
	}

	m.set(pos.Symbol, models.StateNone)
	m.book.Forget(ctx, pos.Symbol)
	m.sink.Notify(ctx, models.Event{
		Kind:       models.EventPositionClosed,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Price:      pos.CurrentPrice,
		EntryPrice: pos.EntryPrice,
		Pnl:        pos.UnrealizedPnl,
		Roi:        pos.Roi,
		Reason:     reason,
		OrderID:    orderID,
		At:         m.now(),
	})

	out.Action = models.ActionClose
	out.Reason = reason
	out.OrderID = orderID
	return out
}

// TryEnter открывает позицию по сигналу, если позволяют лимиты.
func (m *Manager) TryEnter(ctx context.Context, sig models.FusedSignal, positions map[string]*models.Position) models.Outcome {
	span, ctx := tracing.StartSpan(ctx, "lifecycle.enter")
	defer span.Finish()
	span.SetTag("symbol", sig.Symbol)

	out := models.Outcome{Symbol: sig.Symbol, Side: sig.Direction}

	if sig.Direction != models.Long && sig.Direction != models.Short {
		out.Action = models.ActionSkip
		out.Reason = "no signal"
		return out
	}
	if _, ok := positions[sig.Symbol]; ok {
		out.Action = models.ActionSkip
		out.Reason = "position already exists"
		return out
	}
	if st := m.State(sig.Symbol); st != models.StateNone {
		out.Action = models.ActionSkip
		out.Reason = "symbol is " + string(st)
		return out
	}
	if n := m.OpenCount(positions); n >= m.cfg.MaxOpenPositions {
		out.Action = models.ActionSkip
		out.Reason = fmt.Sprintf("max open positions reached (%d/%d)", n, m.cfg.MaxOpenPositions)
		return out
	}

	stops, ok := risk.ComputeStops(sig.Price, sig.Direction, m.cfg.Risk)
	if !ok || sig.Price <= 0 {
		out.Action = models.ActionSkip
		out.Reason = "no entry price"
		return out
	}

	m.sink.Notify(ctx, models.Event{
		Kind:       models.EventSignal,
		Symbol:     sig.Symbol,
		Side:       sig.Direction,
		Price:      sig.Price,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
		Stops:      &stops,
		At:         m.now(),
	})

	req := models.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     sig.Direction,
		Volume:   m.cfg.PositionSize,
		Leverage: m.cfg.Leverage,
		OpenType: m.cfg.OpenType,
	}
	if m.cfg.AttachStops {
		req.Stops = &stops
	}

	m.set(sig.Symbol, models.StatePendingOpen)
	logger.Info("[OPEN] %s %s @ %.6f conf=%.2f (%s)", sig.Symbol, sig.Direction, sig.Price, sig.Confidence, sig.Reason)

	orderID, err := m.gw.SubmitOrder(ctx, req)
	if err != nil {
		m.set(sig.Symbol, models.StateNone)
		logger.Error("[OPEN] %s order failed: %v", sig.Symbol, err)
		m.sink.Notify(ctx, models.Event{
			Kind:   models.EventOrderFailed,
			Symbol: sig.Symbol,
			Side:   sig.Direction,
			Price:  sig.Price,
			Err:    err,
			At:     m.now(),
		})
		tracing.MarkError(span, err)
		out.Action = models.ActionError
		out.Reason = "order failed"
		out.Err = err
		return out
	}

	m.book.Seed(sig.Symbol, stops)
	m.sink.Notify(ctx, models.Event{
		Kind:       models.EventOrderPlaced,
		Symbol:     sig.Symbol,
		Side:       sig.Direction,
		Price:      sig.Price,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
		OrderID:    orderID,
		Stops:      &stops,
		At:         m.now(),
	})

	out.Action = models.ActionOpen
	out.Reason = sig.Reason
	out.OrderID = orderID
	return out
}
