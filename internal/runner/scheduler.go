package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"futures_bot/internal/journal"
	"futures_bot/internal/models"
	"futures_bot/internal/modules/health/service"
	"futures_bot/internal/tracker"
	"futures_bot/pkg/logger"
	"futures_bot/pkg/tracing"
)

const defaultBatchSize = 10

type Universe interface {
	ScanMarkets(ctx context.Context) ([]models.MarketInfo, error)
}

type SignalSource interface {
	Fuse(ctx context.Context, symbol string) (models.FusedSignal, error)
}

type Broker interface {
	OpenPositions(ctx context.Context) ([]models.RawPosition, error)
}

type PositionTracker interface {
	Normalize(ctx context.Context, raw []models.RawPosition, prices tracker.PriceLookup) map[string]*models.Position
}

type Lifecycle interface {
	Sync(positions map[string]*models.Position)
	ManageExit(ctx context.Context, pos *models.Position, sig models.FusedSignal) models.Outcome
	TryEnter(ctx context.Context, sig models.FusedSignal, positions map[string]*models.Position) models.Outcome
}

// PriceFeed — текущие цены; Sync держит подписки только на нужные символы.
type PriceFeed interface {
	tracker.PriceLookup
	Sync(symbols []string)
}

type Reporter interface {
	ReportCycle(r service.CycleReport)
}

type Notifier interface {
	Notify(ctx context.Context, ev models.Event)
}

type Config struct {
	CycleDelay time.Duration
	BatchSize  int
}

type Deps struct {
	Universe Universe
	Signals  SignalSource
	Broker   Broker
	Tracker  PositionTracker
	Manager  Lifecycle
	Prices   PriceFeed
	Journal  journal.Journal
	Health   Reporter
	Sink     Notifier
}

// Scheduler гоняет циклы: сигналы пачками, затем выходы и входы по одному снимку позиций.
type Scheduler struct {
	cfg Config
	d   Deps
	now func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(cfg Config, d Deps) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if d.Journal == nil {
		d.Journal = journal.Noop{}
	}
	return &Scheduler{cfg: cfg, d: d, now: time.Now}
}

// Start запускает периодический цикл. Повторный вызов без Stop ничего не делает.
func (s *Scheduler) Start(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop отменяет текущий цикл и ждёт выхода горутины.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	logger.Info("[CYCLE] scheduler started, delay %s, batch %d", s.cfg.CycleDelay, s.cfg.BatchSize)
	s.status(ctx, "запущен")
	defer func() {
		// ctx уже отменён, уведомление уходит на свежем
		s.status(context.Background(), "остановлен")
		logger.Info("[CYCLE] scheduler stopped")
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.runOnce(ctx)
		timer.Reset(s.cfg.CycleDelay)
	}
}

func (s *Scheduler) status(ctx context.Context, text string) {
	s.d.Sink.Notify(ctx, models.Event{Kind: models.EventBotStatus, Reason: text, At: s.now()})
}

// runOnce — один тик: скан, цикл. Ошибка или паника не останавливают планировщик.
func (s *Scheduler) runOnce(ctx context.Context) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cycle panic: %v", r)
			logger.Error("[CYCLE] %v", err)
			s.d.Health.ReportCycle(service.CycleReport{StartedAt: started, Duration: s.now().Sub(started), Err: err})
			s.d.Sink.Notify(ctx, models.Event{Kind: models.EventCycleError, Err: err, At: s.now()})
		}
	}()

	markets, err := s.d.Universe.ScanMarkets(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// выходы по открытым позициям всё равно отрабатываем
		logger.Error("[SCAN] scan failed, cycle runs without new symbols: %v", err)
		s.d.Sink.Notify(ctx, models.Event{Kind: models.EventCycleError, Reason: "scan", Err: err, At: s.now()})
		markets = nil
	}
	universe := make([]string, 0, len(markets))
	for _, m := range markets {
		universe = append(universe, m.Symbol)
	}

	if _, err := s.RunCycle(ctx, universe); err != nil && ctx.Err() == nil {
		s.d.Sink.Notify(ctx, models.Event{Kind: models.EventCycleError, Err: err, At: s.now()})
	}
}

// RunCycle выполняет один цикл по заданной вселенной и возвращает исходы по символам.
// Ошибка — только если цикл не смог получить позиции или был отменён.
func (s *Scheduler) RunCycle(ctx context.Context, universe []string) (outcomes []models.Outcome, err error) {
	id := uuid.New()
	started := s.now()

	span, ctx := tracing.StartSpan(ctx, "runner.cycle")
	defer span.Finish()
	span.SetTag("cycle_id", id.String())
	span.SetTag("universe", len(universe))

	universe = dedupe(universe)
	openCount := 0
	defer func() {
		if err != nil {
			tracing.MarkError(span, err)
			logger.Error("[CYCLE] %s failed: %v", id, err)
		}
		s.report(ctx, id, started, len(universe), openCount, outcomes, err)
	}()

	signals, skipped, err := s.fuseAll(ctx, universe)
	if err != nil {
		return nil, err
	}

	raw, err := s.d.Broker.OpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	positions := s.d.Tracker.Normalize(ctx, raw, s.d.Prices)
	held := tracker.Symbols(positions)
	openCount = len(held)
	s.d.Prices.Sync(held)
	s.d.Manager.Sync(positions)

	for _, sym := range held {
		if _, ok := signals[sym]; ok {
			continue
		}
		if _, ok := skipped[sym]; ok {
			continue
		}
		sig, err := s.d.Signals.Fuse(ctx, sym)
		if err != nil {
			// без сигнала выход решают стопы и ROI
			logger.Warn("[SIGNAL] %s held symbol without signal: %v", sym, err)
			continue
		}
		signals[sym] = sig
	}

	// выходы
	closed := make(map[string]bool)
	for _, sym := range held {
		pos := positions[sym]
		sig, ok := signals[sym]
		if !ok {
			sig = models.FusedSignal{Symbol: sym, Signal: models.FlatSignal("none")}
		}
		out := s.guard(sym, func() models.Outcome { return s.d.Manager.ManageExit(ctx, pos, sig) })
		if out.Action == models.ActionClose {
			delete(positions, sym)
			closed[sym] = true
		}
		outcomes = append(outcomes, out)
	}

	// входы
	for _, sym := range universe {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if closed[sym] {
			logger.Debug("[CYCLE] %s closed this cycle, no re-entry", sym)
			continue
		}
		if _, ok := positions[sym]; ok {
			continue
		}
		if out, ok := skipped[sym]; ok {
			outcomes = append(outcomes, out)
			continue
		}
		sig := signals[sym]
		outcomes = append(outcomes, s.guard(sym, func() models.Outcome { return s.d.Manager.TryEnter(ctx, sig, positions) }))
	}

	return outcomes, nil
}

// fuseAll считает сигналы пачками по BatchSize. Каждая горутина пишет в свой слот,
// поэтому порядок результатов совпадает с вселенной.
func (s *Scheduler) fuseAll(ctx context.Context, universe []string) (map[string]models.FusedSignal, map[string]models.Outcome, error) {
	type slot struct {
		sig models.FusedSignal
		err error
	}
	slots := make([]slot, len(universe))

	for start := 0; start < len(universe); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		end := min(start+s.cfg.BatchSize, len(universe))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						slots[i].err = fmt.Errorf("signal panic: %v", r)
					}
				}()
				slots[i].sig, slots[i].err = s.d.Signals.Fuse(ctx, universe[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	signals := make(map[string]models.FusedSignal, len(universe))
	skipped := make(map[string]models.Outcome)
	for i, sym := range universe {
		err := slots[i].err
		switch {
		case err == nil:
			signals[sym] = slots[i].sig
		case errors.Is(err, models.ErrInsufficientData):
			logger.Debug("[SIGNAL] %s skipped: %v", sym, err)
			skipped[sym] = models.Outcome{Symbol: sym, Action: models.ActionSkip, Reason: err.Error()}
		default:
			logger.Warn("[SIGNAL] %s failed: %v", sym, err)
			skipped[sym] = models.Outcome{Symbol: sym, Action: models.ActionError, Reason: "signal failed", Err: err}
		}
	}
	return signals, skipped, nil
}

// guard ловит панику на границе символа.
func (s *Scheduler) guard(symbol string, fn func() models.Outcome) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("[CYCLE] %s %v", symbol, err)
			out = models.Outcome{Symbol: symbol, Action: models.ActionError, Reason: "internal error", Err: err}
		}
	}()
	return fn()
}

func (s *Scheduler) report(ctx context.Context, id uuid.UUID, started time.Time, universe, open int, outcomes []models.Outcome, cycleErr error) {
	actions := make(map[models.Action]int)
	for _, o := range outcomes {
		actions[o.Action]++
	}
	dur := s.now().Sub(started)

	if cycleErr == nil {
		logger.Info("[CYCLE] %s done in %s: universe=%d positions=%d opened=%d closed=%d hold=%d skip=%d error=%d",
			id, dur.Round(time.Millisecond), universe, open,
			actions[models.ActionOpen], actions[models.ActionClose], actions[models.ActionHold],
			actions[models.ActionSkip], actions[models.ActionError])
	}

	if err := s.d.Journal.Record(context.WithoutCancel(ctx), id, outcomes); err != nil {
		logger.Error("[JOURNAL] cycle %s: %v", id, err)
	}
	s.d.Health.ReportCycle(service.CycleReport{
		ID:            id.String(),
		StartedAt:     started,
		Duration:      dur,
		Universe:      universe,
		OpenPositions: open,
		Actions:       actions,
		Err:           cycleErr,
	})
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := symbols[:0:0]
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
