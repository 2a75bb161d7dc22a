package sheets

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Entry is one audit row describing a change to the transactions table.
type Entry struct {
	At            time.Time
	Event         string
	TransactionID int64
	Count         int
	// Transaction is the row as it looked after the change. It is nil for
	// deletions, imports and rows that vanished before the entry was written.
	Transaction *core.Transaction
}

// Header names the journal columns in the order produced by Row.
var Header = []any{"logged_at", "event", "id", "date", "description", "category", "account", "amount", "tags", "count"}

// Row flattens the entry into spreadsheet cells.
func (e Entry) Row() []any {
	row := []any{e.At.UTC().Format(time.RFC3339), e.Event, "", "", "", "", "", "", "", ""}
	if e.TransactionID != 0 {
		row[2] = e.TransactionID
	}
	if e.Count != 0 {
		row[9] = e.Count
	}
	if tx := e.Transaction; tx != nil {
		row[3] = tx.Date
		row[4] = tx.Description
		row[5] = tx.Category
		row[6] = tx.Account
		row[7] = tx.Amount
		if tx.Tags != nil {
			row[8] = *tx.Tags
		}
	}
	return row
}

// JournalWriter appends audit entries to an outbound store.
type JournalWriter interface {
	AppendEntry(ctx context.Context, e Entry) (rowRef string, err error)
}
