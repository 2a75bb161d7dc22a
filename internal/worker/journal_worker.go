package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// TransactionSource looks up the current state of a row.
type TransactionSource interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
}

// JournalWorker turns change events into audit rows.
type JournalWorker struct {
	source  TransactionSource
	journal sheets.JournalWriter
}

func NewJournalWorker(source TransactionSource, journal sheets.JournalWriter) *JournalWorker {
	return &JournalWorker{source: source, journal: journal}
}

// HandleEvent records one event. Created and updated events are enriched
// with the row as currently stored. An error makes the broker redeliver.
func (w *JournalWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	entry := sheets.Entry{
		At:            event.Timestamp,
		Event:         string(event.Type),
		TransactionID: event.ID,
		Count:         event.Count,
	}

	switch event.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		tx, err := w.source.Get(ctx, event.ID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			slog.WarnContext(ctx, "Transaction gone before journaling",
				"transaction_id", event.ID,
				"event", event.Type)
		case err != nil:
			return fmt.Errorf("get transaction from storage: %w", err)
		default:
			entry.Transaction = &tx
		}
	}

	ref, err := w.journal.AppendEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	slog.InfoContext(ctx, "Event journaled",
		"event", event.Type,
		"transaction_id", event.ID,
		"ref", ref)
	return nil
}
