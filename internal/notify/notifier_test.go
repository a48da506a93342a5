package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"futures_bot/internal/models"
)

type recordSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordSink) Notify(_ context.Context, ev models.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []tgbot.MessageConfig
	block chan struct{}
}

func (f *fakeSender) Send(c tgbot.Chattable) (tgbot.Message, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbot.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbot.Message{}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	m := NewMulti(a, nil, b)
	if len(m) != 2 {
		t.Fatalf("nil sinks must be skipped, len = %d", len(m))
	}

	m.Notify(context.Background(), models.Event{Kind: models.EventSignal, Symbol: "BTC_USDT"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}
}

func TestFormat(t *testing.T) {
	tp := 102.0
	tests := []struct {
		name string
		ev   models.Event
		want []string
	}{
		{
			name: "signal",
			ev: models.Event{Kind: models.EventSignal, Symbol: "BTC_USDT", Side: models.Long, Price: 100, Confidence: 0.85,
				Reason: "RSI 18.0 <strong>", Stops: &models.RiskParameters{StopLossPrice: 99, TakeProfitPrice: &tp}},
			want: []string{"🟢", "<code>BTC_USDT</code>", "85.0%", "SL: 99.000000", "TP: 102.000000", "&lt;strong&gt;"},
		},
		{
			name: "closed with loss",
			ev: models.Event{Kind: models.EventPositionClosed, Symbol: "ETH_USDT", Side: models.Short,
				EntryPrice: 2000, Price: 2010, Pnl: -5, Roi: -25, Reason: "Trailing stop hit"},
			want: []string{"💸", "Вход: 2000.0000", "Выход: 2010.0000", "PnL: -5.00 (-25.00%)", "Trailing stop hit"},
		},
		{
			name: "order failed",
			ev:   models.Event{Kind: models.EventOrderFailed, Symbol: "X_USDT", Side: models.Short, Err: errors.New("code=602")},
			want: []string{"Ордер не прошёл", "code=602"},
		},
		{
			name: "cycle error without err",
			ev:   models.Event{Kind: models.EventCycleError, Reason: "panic"},
			want: []string{"Ошибка цикла", "n/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.ev)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Format() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestPlainStripsMarkup(t *testing.T) {
	got := Plain(models.Event{Kind: models.EventSignal, Symbol: "A_USDT", Side: models.Short, Reason: "a<b"})
	if strings.Contains(got, "<code>") || strings.Contains(got, "<b>") {
		t.Errorf("Plain() kept markup: %q", got)
	}
	if !strings.Contains(got, "a<b") {
		t.Errorf("Plain() must unescape reason: %q", got)
	}
}

func TestTelegramSendsAsync(t *testing.T) {
	s := &fakeSender{}
	tg := NewTelegramWithSender(s, 42)
	tg.Start(context.Background())

	tg.Notify(context.Background(), models.Event{Kind: models.EventSignal, Symbol: "BTC_USDT", Side: models.Long})
	tg.Notify(context.Background(), models.Event{Kind: models.EventBotStatus, Reason: "остановлен"})
	tg.Stop()

	if s.count() != 2 {
		t.Fatalf("sent = %d, want 2", s.count())
	}
	if s.sent[0].ChatID != 42 || s.sent[0].ParseMode != tgbot.ModeHTML {
		t.Errorf("message = %+v", s.sent[0].BaseChat)
	}

	tg.Notify(context.Background(), models.Event{Kind: models.EventSignal})
	if s.count() != 2 {
		t.Errorf("Notify after Stop must be ignored")
	}
}

func TestTelegramDropsWhenFull(t *testing.T) {
	s := &fakeSender{block: make(chan struct{})}
	tg := NewTelegramWithSender(s, 1)
	tg.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize+10; i++ {
			tg.Notify(context.Background(), models.Event{Kind: models.EventSignal, Symbol: "S"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stuck sender")
	}
	if tg.Dropped() == 0 {
		t.Errorf("overflow must drop messages")
	}

	close(s.block)
	tg.Stop()
}
