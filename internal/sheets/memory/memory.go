// Package memory is a JournalWriter that keeps entries in process and logs
// them. It is used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fintrack/internal/sheets"
)

type Journal struct {
	mu    sync.Mutex
	limit int
	items []sheets.Entry
	total int
}

var _ sheets.JournalWriter = (*Journal)(nil)

// New keeps at most limit recent entries; limit <= 0 keeps everything.
func New(limit int) *Journal {
	return &Journal{limit: limit}
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (j *Journal) AppendEntry(ctx context.Context, e sheets.Entry) (string, error) {
	j.mu.Lock()
	j.items = append(j.items, e)
	if j.limit > 0 && len(j.items) > j.limit {
		j.items = append([]sheets.Entry(nil), j.items[len(j.items)-j.limit:]...)
	}
	j.total++
	ref := fmt.Sprintf("mem:%d", j.total)
	j.mu.Unlock()

	slog.InfoContext(ctx, "Journal entry recorded",
		"ref", ref,
		"event", e.Event,
		"transaction_id", e.TransactionID)
	return ref, nil
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []sheets.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]sheets.Entry(nil), j.items...)
}
