package exchange

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"futures_bot/pkg/logger"
)

const (
	wsPingEvery  = 15 * time.Second
	wsMaxBackoff = 10 * time.Second
)

// RestPrices — запасной источник цены.
type RestPrices interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

type quote struct {
	price float64
	at    time.Time
}

// PriceFeed держит по ws-подписке sub.ticker на каждый отслеживаемый
// символ. Price отдаёт ws-цену, пока она не старше maxAge, иначе REST.
type PriceFeed struct {
	url    string
	dialer *websocket.Dialer
	rest   RestPrices
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	quotes map[string]quote
	subs   map[string]context.CancelFunc
	parent context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup

	live   atomic.Int32
	onConn func(connected bool)
}

func NewPriceFeed(url string, rest RestPrices, maxAge time.Duration) *PriceFeed {
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &PriceFeed{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		rest:   rest,
		maxAge: maxAge,
		now:    time.Now,
		quotes: make(map[string]quote),
		subs:   make(map[string]context.CancelFunc),
	}
}

// OnConnChange — хук для health: есть ли хоть одно живое соединение.
func (f *PriceFeed) OnConnChange(fn func(connected bool)) {
	f.mu.Lock()
	f.onConn = fn
	f.mu.Unlock()
}

func (f *PriceFeed) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parent != nil {
		return
	}
	f.parent, f.stop = context.WithCancel(ctx)
}

// Stop рвёт все подписки и ждёт горутины.
func (f *PriceFeed) Stop() {
	f.mu.Lock()
	if f.stop != nil {
		f.stop()
	}
	f.subs = make(map[string]context.CancelFunc)
	f.mu.Unlock()
	f.wg.Wait()
}

// Sync оставляет подписки ровно на symbols.
func (f *PriceFeed) Sync(symbols []string) {
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parent == nil || f.parent.Err() != nil {
		return
	}

	for sym, cancel := range f.subs {
		if _, ok := want[sym]; !ok {
			cancel()
			delete(f.subs, sym)
			delete(f.quotes, sym)
			logger.Debug("[WS] %s unsubscribed", sym)
		}
	}
	for sym := range want {
		if _, ok := f.subs[sym]; ok {
			continue
		}
		ctx, cancel := context.WithCancel(f.parent)
		f.subs[sym] = cancel
		f.wg.Add(1)
		go f.stream(ctx, sym)
	}
}

// Tracked — символы с активной подпиской.
func (f *PriceFeed) Tracked() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *PriceFeed) Price(ctx context.Context, symbol string) (float64, error) {
	f.mu.RLock()
	q, ok := f.quotes[symbol]
	f.mu.RUnlock()
	if ok && q.price > 0 && f.now().Sub(q.at) <= f.maxAge {
		return q.price, nil
	}
	return f.rest.Price(ctx, symbol)
}

func (f *PriceFeed) setPrice(symbol string, price float64) {
	f.mu.Lock()
	if _, ok := f.subs[symbol]; ok {
		f.quotes[symbol] = quote{price: price, at: f.now()}
	}
	f.mu.Unlock()
}

func (f *PriceFeed) connChanged(delta int32) {
	n := f.live.Add(delta)
	f.mu.RLock()
	fn := f.onConn
	f.mu.RUnlock()
	if fn != nil {
		fn(n > 0)
	}
}

type tickerFrame struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
	Data    struct {
		Symbol    string    `json:"symbol"`
		LastPrice flexFloat `json:"lastPrice"`
	} `json:"data"`
}

// stream — одна подписка с переподключением до отмены ctx.
func (f *PriceFeed) stream(ctx context.Context, symbol string) {
	defer f.wg.Done()

	retry := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			retry++
			logger.Warn("[WS] %s dial error (retry %d): %v", symbol, retry, err)
			if !sleepCtx(ctx, backoff(retry)) {
				return
			}
			continue
		}
		retry = 0

		if err := conn.WriteJSON(map[string]any{"method": "sub.ticker", "param": map[string]string{"symbol": symbol}}); err != nil {
			logger.Warn("[WS] %s subscribe error: %v", symbol, err)
			_ = conn.Close()
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		f.connChanged(1)
		logger.Debug("[WS] %s subscribed", symbol)

		f.readLoop(ctx, conn, symbol)
		f.connChanged(-1)

		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

func (f *PriceFeed) readLoop(ctx context.Context, conn *websocket.Conn, symbol string) {
	done := make(chan struct{})

	go func() {
		t := time.NewTicker(wsPingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// разблокирует ReadMessage
				_ = conn.Close()
				return
			case <-t.C:
				_ = conn.WriteJSON(map[string]string{"method": "ping"})
			}
		}
	}()
	defer func() {
		close(done)
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("[WS] %s read error: %v", symbol, err)
			}
			return
		}
		var frame tickerFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil || frame.Channel != "push.ticker" {
			continue
		}
		if px := float64(frame.Data.LastPrice); px > 0 {
			f.setPrice(symbol, px)
		}
	}
}

func backoff(retry int) time.Duration {
	d := time.Duration(300*retry) * time.Millisecond
	if d > wsMaxBackoff {
		return wsMaxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
