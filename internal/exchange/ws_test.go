package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeRest struct {
	price float64
	calls atomic.Int32
}

func (f *fakeRest) Price(context.Context, string) (float64, error) {
	f.calls.Add(1)
	return f.price, nil
}

func tickerServer(t *testing.T, price string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Method string            `json:"method"`
			Param  map[string]string `json:"param"`
		}
		if err := conn.ReadJSON(&sub); err != nil || sub.Method != "sub.ticker" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":"rs.sub.ticker","data":"success"}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"channel":"push.ticker","symbol":"`+sub.Param["symbol"]+`","data":{"symbol":"`+sub.Param["symbol"]+`","lastPrice":`+price+`}}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPriceFeedStreamsTicker(t *testing.T) {
	srv := tickerServer(t, "101.5")
	rest := &fakeRest{price: 1}
	feed := NewPriceFeed("ws"+strings.TrimPrefix(srv.URL, "http"), rest, time.Minute)

	var connected atomic.Bool
	feed.OnConnChange(func(v bool) { connected.Store(v) })
	feed.Start(context.Background())
	defer feed.Stop()

	feed.Sync([]string{"BTC_USDT"})
	if feed.Tracked() != 1 {
		t.Fatalf("tracked = %d, want 1", feed.Tracked())
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		feed.mu.RLock()
		q, ok := feed.quotes["BTC_USDT"]
		feed.mu.RUnlock()
		if ok && q.price == 101.5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("ws price never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}

	px, err := feed.Price(context.Background(), "BTC_USDT")
	if err != nil || px != 101.5 {
		t.Fatalf("Price = %v %v, want 101.5 from ws", px, err)
	}
	if rest.calls.Load() != 0 {
		t.Errorf("fresh ws quote must not hit REST")
	}
	if !connected.Load() {
		t.Errorf("health hook must report connected")
	}

	feed.Sync(nil)
	if feed.Tracked() != 0 {
		t.Errorf("Sync(nil) must drop subscriptions")
	}
}

func TestPriceFeedFallsBackToRest(t *testing.T) {
	rest := &fakeRest{price: 42}
	feed := NewPriceFeed("ws://unused", rest, 10*time.Second)
	now := time.Unix(1_000, 0)
	feed.now = func() time.Time { return now }
	feed.quotes["BTC_USDT"] = quote{price: 100, at: now.Add(-11 * time.Second)}

	px, err := feed.Price(context.Background(), "BTC_USDT")
	if err != nil || px != 42 {
		t.Fatalf("stale quote: Price = %v %v, want REST 42", px, err)
	}
	if px, _ := feed.Price(context.Background(), "ETH_USDT"); px != 42 || rest.calls.Load() != 2 {
		t.Errorf("unknown symbol must go to REST")
	}
}

func TestPriceFeedStopUnblocks(t *testing.T) {
	srv := tickerServer(t, "1")
	feed := NewPriceFeed("ws"+strings.TrimPrefix(srv.URL, "http"), &fakeRest{}, time.Minute)
	feed.Start(context.Background())
	feed.Sync([]string{"A_USDT", "B_USDT"})

	done := make(chan struct{})
	go func() {
		feed.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	feed.Sync([]string{"C_USDT"})
	if feed.Tracked() != 0 {
		t.Errorf("stopped feed must not subscribe")
	}
}
