package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
	"fintrack/internal/sheets/memory"
)

type mapSource struct {
	rows map[int64]core.Transaction
	err  error
}

func (m mapSource) Get(_ context.Context, id int64) (core.Transaction, error) {
	if m.err != nil {
		return core.Transaction{}, m.err
	}
	tx, ok := m.rows[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

type failingJournal struct{}

func (failingJournal) AppendEntry(context.Context, sheets.Entry) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestHandleEvent(t *testing.T) {
	src := mapSource{rows: map[int64]core.Transaction{
		1: {ID: 1, Date: "2024-03-01", Description: "Salary", Category: "Income", Account: "Checking", Amount: 5000},
	}}
	journal := memory.New(0)
	w := NewJournalWorker(src, journal)
	ctx := context.Background()

	events := []*amqp.TransactionEvent{
		amqp.NewTransactionEvent(amqp.EventCreated, 1),
		amqp.NewTransactionEvent(amqp.EventUpdated, 2), // already deleted
		amqp.NewTransactionEvent(amqp.EventDeleted, 2),
		amqp.NewImportEvent(5),
	}
	for _, e := range events {
		if err := w.HandleEvent(ctx, e); err != nil {
			t.Fatalf("handle %s: %v", e.Type, err)
		}
	}

	got := journal.Entries()
	if len(got) != len(events) {
		t.Fatalf("expected %d entries, got %d", len(events), len(got))
	}
	if got[0].Transaction == nil || got[0].Transaction.Description != "Salary" {
		t.Fatalf("created entry should carry the row: %+v", got[0])
	}
	if got[1].Transaction != nil || got[2].Transaction != nil {
		t.Fatalf("missing and deleted rows have no snapshot")
	}
	if got[3].Count != 5 || got[3].Event != string(amqp.EventImported) {
		t.Fatalf("unexpected import entry: %+v", got[3])
	}
	if time.Since(got[0].At) > time.Minute {
		t.Fatalf("entry time should come from the event")
	}
}

func TestHandleEventErrors(t *testing.T) {
	ctx := context.Background()

	storageDown := NewJournalWorker(mapSource{err: errors.New("disk I/O error")}, memory.New(0))
	if err := storageDown.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventCreated, 1)); err == nil {
		t.Fatal("expected storage error to be returned for redelivery")
	}

	journalDown := NewJournalWorker(mapSource{}, failingJournal{})
	if err := journalDown.HandleEvent(ctx, amqp.NewTransactionEvent(amqp.EventDeleted, 1)); err == nil {
		t.Fatal("expected journal error to be returned")
	}
}
