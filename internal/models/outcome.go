package models

import "time"

type Action string

const (
	ActionSkip  Action = "SKIP"
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
	ActionHold  Action = "HOLD"
	ActionError Action = "ERROR"
)

// Outcome — запись о решении по символу за цикл.
type Outcome struct {
	Symbol  string
	Action  Action
	Reason  string
	Side    Direction
	OrderID string
	Err     error
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Symbol + " " + string(o.Action)
	}
	return o.Symbol + " " + string(o.Action) + ": " + o.Reason
}

// State — состояние символа в жизненном цикле позиции.
type State string

const (
	StateNone         State = "NONE"
	StatePendingOpen  State = "PENDING_OPEN"
	StateOpen         State = "OPEN"
	StatePendingClose State = "PENDING_CLOSE"
)

type EventKind string

const (
	EventSignal         EventKind = "signal"
	EventOrderPlaced    EventKind = "order_placed"
	EventOrderFailed    EventKind = "order_failed"
	EventPositionClosed EventKind = "position_closed"
	EventCloseFailed    EventKind = "close_failed"
	EventCycleError     EventKind = "cycle_error"
	EventBotStatus      EventKind = "bot_status"
)

// Event — уведомление для внешнего мира (Telegram, лог).
type Event struct {
	Kind       EventKind
	Symbol     string
	Side       Direction
	Price      float64
	EntryPrice float64
	Pnl        float64
	Roi        float64
	Confidence float64
	Reason     string
	OrderID    string
	Stops      *RiskParameters
	Err        error
	At         time.Time
}
