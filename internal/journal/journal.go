package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"futures_bot/internal/models"
	"futures_bot/pkg/db"
	"futures_bot/pkg/logger"
)

// Journal — аудит решений цикла и закрытых сделок. Только запись,
// ядро никогда не читает журнал обратно.
type Journal interface {
	Record(ctx context.Context, cycleID uuid.UUID, outcomes []models.Outcome) error
	Notify(ctx context.Context, ev models.Event)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cycle_outcomes (
		id         BIGSERIAL PRIMARY KEY,
		cycle_id   UUID        NOT NULL,
		symbol     TEXT        NOT NULL,
		action     TEXT        NOT NULL,
		side       TEXT        NOT NULL DEFAULT '',
		reason     TEXT        NOT NULL DEFAULT '',
		order_id   TEXT        NOT NULL DEFAULT '',
		error      TEXT        NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cycle_outcomes_cycle_id_idx ON cycle_outcomes (cycle_id)`,
	`CREATE TABLE IF NOT EXISTS closed_positions (
		id          BIGSERIAL PRIMARY KEY,
		symbol      TEXT             NOT NULL,
		side        TEXT             NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price  DOUBLE PRECISION NOT NULL,
		pnl         DOUBLE PRECISION NOT NULL,
		roi         DOUBLE PRECISION NOT NULL,
		reason      TEXT             NOT NULL,
		order_id    TEXT             NOT NULL DEFAULT '',
		closed_at   TIMESTAMPTZ      NOT NULL
	)`,
}

const (
	insertOutcome = `INSERT INTO cycle_outcomes (cycle_id, symbol, action, side, reason, order_id, error, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)`
	insertClosed = `INSERT INTO closed_positions (symbol, side, entry_price, exit_price, pnl, roi, reason, order_id, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
)

// PgJournal пишет в Postgres через TxManager.
type PgJournal struct {
	tx  db.TxManager
	now func() time.Time
}

func NewPgJournal(tx db.TxManager) *PgJournal {
	return &PgJournal{tx: tx, now: time.Now}
}

func (j *PgJournal) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := j.tx.Conn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// Record пишет исходы цикла одной транзакцией.
func (j *PgJournal) Record(ctx context.Context, cycleID uuid.UUID, outcomes []models.Outcome) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgJournal.Record: %w", err)
		}
	}()
	if len(outcomes) == 0 {
		return nil
	}

	at := j.now().UTC()
	return j.tx.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		for _, o := range outcomes {
			errText := ""
			if o.Err != nil {
				errText = o.Err.Error()
			}
			if _, err := tx.Exec(ctxTx, insertOutcome,
				cycleID.String(), o.Symbol, string(o.Action), string(o.Side), o.Reason, o.OrderID, errText, at,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Notify сохраняет закрытые позиции; прочие события игнорируются.
func (j *PgJournal) Notify(ctx context.Context, ev models.Event) {
	if ev.Kind != models.EventPositionClosed {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = j.now()
	}
	if _, err := j.tx.Conn().Exec(ctx, insertClosed,
		ev.Symbol, string(ev.Side), ev.EntryPrice, ev.Price, ev.Pnl, ev.Roi, ev.Reason, ev.OrderID, at.UTC(),
	); err != nil {
		logger.Error("[JOURNAL] %s closed position: %v", ev.Symbol, err)
	}
}

// Noop — журнал выключен (DATABASE_DSN пуст).
type Noop struct{}

func (Noop) Record(context.Context, uuid.UUID, []models.Outcome) error { return nil }
func (Noop) Notify(context.Context, models.Event)                      {}
