package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"futures_bot/internal/models"
	"futures_bot/pkg/db"
)

type execCall struct {
	sql  string
	args []any
}

type fakeTx struct {
	calls   []execCall
	failOn  string
	runs    int
	aborted bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row        { return nil }

func (f *fakeTx) RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx db.Transaction) error) error {
	f.runs++
	if err := fn(ctx, f); err != nil {
		f.aborted = true
		return err
	}
	return nil
}

func (f *fakeTx) Conn() db.Transaction { return f }

func TestEnsureSchema(t *testing.T) {
	tx := &fakeTx{}
	if err := NewPgJournal(tx).EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(tx.calls) != len(schema) {
		t.Fatalf("statements = %d, want %d", len(tx.calls), len(schema))
	}
	if !strings.Contains(tx.calls[0].sql, "CREATE TABLE IF NOT EXISTS cycle_outcomes") {
		t.Errorf("first statement = %q", tx.calls[0].sql)
	}
}

func TestRecordWritesOneRowPerOutcome(t *testing.T) {
	tx := &fakeTx{}
	j := NewPgJournal(tx)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j.now = func() time.Time { return at }
	id := uuid.New()

	err := j.Record(context.Background(), id, []models.Outcome{
		{Symbol: "BTC_USDT", Action: models.ActionOpen, Side: models.Long, Reason: "breakout", OrderID: "1"},
		{Symbol: "ETH_USDT", Action: models.ActionError, Reason: "order failed", Err: errors.New("code=602")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if tx.runs != 1 || len(tx.calls) != 2 {
		t.Fatalf("runs=%d rows=%d, want 1 tx with 2 rows", tx.runs, len(tx.calls))
	}

	first := tx.calls[0].args
	if first[0] != id.String() || first[1] != "BTC_USDT" || first[2] != "OPEN" || first[3] != "LONG" || first[5] != "1" {
		t.Errorf("first row args = %v", first)
	}
	if first[7] != at {
		t.Errorf("created_at = %v, want %v", first[7], at)
	}
	if tx.calls[1].args[6] != "code=602" {
		t.Errorf("error column = %v", tx.calls[1].args[6])
	}
}

func TestRecordEmptyAndFailure(t *testing.T) {
	tx := &fakeTx{}
	if err := NewPgJournal(tx).Record(context.Background(), uuid.New(), nil); err != nil || tx.runs != 0 {
		t.Fatalf("empty outcomes must not open a tx: err=%v runs=%d", err, tx.runs)
	}

	tx = &fakeTx{failOn: "cycle_outcomes"}
	err := NewPgJournal(tx).Record(context.Background(), uuid.New(), []models.Outcome{{Symbol: "A", Action: models.ActionSkip}})
	if err == nil || !tx.aborted {
		t.Fatalf("failing insert must abort the tx, err=%v", err)
	}
	if !strings.Contains(err.Error(), "PgJournal.Record") {
		t.Errorf("error must be wrapped: %v", err)
	}
}

func TestNotifyRecordsOnlyClosedPositions(t *testing.T) {
	tx := &fakeTx{}
	j := NewPgJournal(tx)

	j.Notify(context.Background(), models.Event{Kind: models.EventSignal, Symbol: "A"})
	j.Notify(context.Background(), models.Event{
		Kind: models.EventPositionClosed, Symbol: "B", Side: models.Short,
		EntryPrice: 10, Price: 9, Pnl: 1.5, Roi: 30, Reason: "Reverse signal", OrderID: "7",
		At: time.Unix(100, 0),
	})

	if len(tx.calls) != 1 {
		t.Fatalf("rows = %d, want 1", len(tx.calls))
	}
	args := tx.calls[0].args
	if args[0] != "B" || args[1] != "SHORT" || args[4] != 1.5 || args[6] != "Reverse signal" {
		t.Errorf("closed row args = %v", args)
	}

	// ошибка записи не всплывает наружу
	tx.failOn = "closed_positions"
	j.Notify(context.Background(), models.Event{Kind: models.EventPositionClosed, Symbol: "C"})
}
