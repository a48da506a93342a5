package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
)

// Sender — часть *tgbot.BotAPI, которой хватает для отправки.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// Telegram отправляет события в чат из своей горутины. Переполненная
// очередь сбрасывает сообщение: торговый цикл не ждёт Telegram.
type Telegram struct {
	bot    Sender
	chatID int64

	queue   chan string
	quit    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return NewTelegramWithSender(b, chatID), nil
}

func NewTelegramWithSender(s Sender, chatID int64) *Telegram {
	return &Telegram{
		bot:    s,
		chatID: chatID,
		queue:  make(chan string, queueSize),
		quit:   make(chan struct{}),
	}
}

func (t *Telegram) Notify(_ context.Context, ev models.Event) {
	select {
	case <-t.quit:
		return
	default:
	}
	select {
	case t.queue <- Format(ev):
	default:
		n := t.dropped.Add(1)
		logger.Warn("[NOTIFY] telegram queue full, %s %s dropped (total %d)", ev.Kind, ev.Symbol, n)
	}
}

// Dropped — сколько сообщений сброшено из-за полной очереди.
func (t *Telegram) Dropped() int64 { return t.dropped.Load() }

func (t *Telegram) Start(ctx context.Context) {
	t.wg.Add(1)
	go t.loop(ctx)
}

// Stop дописывает то, что уже в очереди, и останавливает отправку.
func (t *Telegram) Stop() {
	t.once.Do(func() { close(t.quit) })
	t.wg.Wait()
}

func (t *Telegram) loop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case text := <-t.queue:
			t.send(text)
		case <-ctx.Done():
			return
		case <-t.quit:
			for {
				select {
				case text := <-t.queue:
					t.send(text)
				default:
					return
				}
			}
		}
	}
}

func (t *Telegram) send(text string) {
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = tgbot.ModeHTML
	msg.DisableWebPagePreview = true

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("[NOTIFY] telegram send: %v", err)
		}
	case <-time.After(sendTimeout):
		logger.Error("[NOTIFY] telegram send timed out")
	}
}
