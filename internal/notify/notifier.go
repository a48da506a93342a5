package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"futures_bot/internal/models"
	"futures_bot/pkg/logger"
)

// Sink — получатель событий. Notify не блокирует и не возвращает ошибок.
type Sink interface {
	Notify(ctx context.Context, ev models.Event)
}

// Multi рассылает событие всем синкам по очереди.
type Multi []Sink

func NewMulti(sinks ...Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) Notify(ctx context.Context, ev models.Event) {
	for _, s := range m {
		s.Notify(ctx, ev)
	}
}

// Stdout — пишет события в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Notify(_ context.Context, ev models.Event) {
	line := strings.ReplaceAll(Plain(ev), "\n", " | ")
	switch ev.Kind {
	case models.EventOrderFailed, models.EventCloseFailed, models.EventCycleError:
		logger.Warn("[NOTIFY] %s", line)
	default:
		logger.Info("[NOTIFY] %s", line)
	}
}

func sideEmoji(d models.Direction) string {
	switch d {
	case models.Long:
		return "🟢"
	case models.Short:
		return "🔴"
	default:
		return "⚪"
	}
}

func errText(err error) string {
	if err == nil {
		return "n/a"
	}
	return err.Error()
}

// Format — HTML-текст для Telegram.
func Format(ev models.Event) string {
	sym := "<code>" + html.EscapeString(ev.Symbol) + "</code>"
	reason := html.EscapeString(ev.Reason)
	var b strings.Builder

	switch ev.Kind {
	case models.EventSignal:
		fmt.Fprintf(&b, "%s <b>Сигнал</b>\n\n", sideEmoji(ev.Side))
		fmt.Fprintf(&b, "Символ: %s\nНаправление: <b>%s</b>\nУверенность: %.1f%%\nЦена: %.4f\n", sym, ev.Side, ev.Confidence*100, ev.Price)
		writeStops(&b, ev.Stops)
		fmt.Fprintf(&b, "Причина: %s", reason)

	case models.EventOrderPlaced:
		emoji := "📈"
		if ev.Side == models.Short {
			emoji = "📉"
		}
		fmt.Fprintf(&b, "%s <b>Ордер отправлен</b>\n\n", emoji)
		fmt.Fprintf(&b, "Символ: %s\nСторона: <b>%s</b>\nЦена: %.4f (MARKET)\n", sym, ev.Side, ev.Price)
		writeStops(&b, ev.Stops)
		fmt.Fprintf(&b, "Order ID: <code>%s</code>", html.EscapeString(orNA(ev.OrderID)))

	case models.EventOrderFailed:
		fmt.Fprintf(&b, "❗️ <b>Ордер не прошёл</b>\n\nСимвол: %s\nСторона: <b>%s</b>\nОшибка: <code>%s</code>",
			sym, ev.Side, html.EscapeString(errText(ev.Err)))

	case models.EventPositionClosed:
		emoji := "💰"
		if ev.Pnl < 0 {
			emoji = "💸"
		}
		fmt.Fprintf(&b, "%s <b>Позиция закрыта</b>\n\n", emoji)
		fmt.Fprintf(&b, "Символ: %s\nСторона: <b>%s</b>\nВход: %.4f\nВыход: %.4f\nPnL: %.2f (%.2f%%)\nПричина: <b>%s</b>",
			sym, ev.Side, ev.EntryPrice, ev.Price, ev.Pnl, ev.Roi, reason)

	case models.EventCloseFailed:
		fmt.Fprintf(&b, "⚠️ <b>Не удалось закрыть позицию</b>\n\nСимвол: %s\nСторона: <b>%s</b>\nПричина выхода: %s\nОшибка: <code>%s</code>",
			sym, ev.Side, reason, html.EscapeString(errText(ev.Err)))

	case models.EventCycleError:
		fmt.Fprintf(&b, "⚠️ <b>Ошибка цикла</b>\n\n%s\n<code>%s</code>", reason, html.EscapeString(errText(ev.Err)))

	case models.EventBotStatus:
		fmt.Fprintf(&b, "ℹ️ <b>Бот: %s</b>", reason)

	default:
		fmt.Fprintf(&b, "%s %s %s", ev.Kind, sym, reason)
	}
	return b.String()
}

// Plain — Format без HTML-разметки, для лога.
func Plain(ev models.Event) string {
	s := Format(ev)
	for _, tag := range []string{"<b>", "</b>", "<code>", "</code>"} {
		s = strings.ReplaceAll(s, tag, "")
	}
	return html.UnescapeString(s)
}

func writeStops(b *strings.Builder, rp *models.RiskParameters) {
	if rp == nil {
		return
	}
	fmt.Fprintf(b, "SL: %.6f\n", rp.StopLossPrice)
	if rp.TakeProfitPrice != nil {
		fmt.Fprintf(b, "TP: %.6f\n", *rp.TakeProfitPrice)
	}
	if rp.TrailingStopPrice != nil {
		fmt.Fprintf(b, "Trail: %.6f\n", *rp.TrailingStopPrice)
	}
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
