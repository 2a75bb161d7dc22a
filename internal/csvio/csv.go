// Package csvio reads and writes the transaction CSV format:
//
//	date,description,category,account,amount,tags
//
// The writer always emits that header. The reader requires it (trimmed,
// case-insensitive) and silently drops data rows it cannot parse or turn into
// a draft.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fintrack/internal/core"
)

// Header is the exact column list of the format.
var Header = []string{"date", "description", "category", "account", "amount", "tags"}

const bom = "\ufeff"

// Write serialises txs, header first.
func Write(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range txs {
		if err := cw.Write(Record(tx)); err != nil {
			return fmt.Errorf("write csv row %d: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Record returns the CSV fields of one transaction. Null tags become "".
func Record(tx core.Transaction) []string {
	tags := ""
	if tx.Tags != nil {
		tags = *tx.Tags
	}
	return []string{tx.Date, tx.Description, tx.Category, tx.Account, core.FormatAmount(tx.Amount), tags}
}

// Reader yields drafts from an uploaded CSV file.
type Reader struct {
	cr      *csv.Reader
	line    int
	skipped int
}

// NewReader consumes and checks the header row. It returns
// core.ErrHeaderMismatch when the first row is not the expected header.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.ErrHeaderMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if !headerMatches(head) {
		return nil, core.ErrHeaderMismatch
	}
	return &Reader{cr: cr, line: 1}, nil
}

func headerMatches(head []string) bool {
	if len(head) != len(Header) {
		return false
	}
	for i, col := range head {
		if i == 0 {
			col = strings.TrimPrefix(col, bom)
		}
		if strings.ToLower(strings.TrimSpace(col)) != Header[i] {
			return false
		}
	}
	return true
}

// Next returns the next importable row, or io.EOF when the input is exhausted.
func (r *Reader) Next() (core.Draft, error) {
	for {
		rec, err := r.cr.Read()
		var perr *csv.ParseError
		switch {
		case errors.Is(err, io.EOF):
			return core.Draft{}, io.EOF
		case errors.As(err, &perr):
			// A malformed line is a bad row like any other.
			r.line++
			r.skipped++
			continue
		case err != nil:
			return core.Draft{}, fmt.Errorf("read csv line %d: %w", r.line+1, err)
		}
		r.line++
		d, ok := parseRecord(rec)
		if !ok {
			r.skipped++
			continue
		}
		return d, nil
	}
}

// Skipped reports how many data rows have been dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

func parseRecord(rec []string) (core.Draft, bool) {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}

	date := strings.TrimSpace(field(0))
	if !core.ValidDate(date) {
		return core.Draft{}, false
	}
	amount, err := core.ParseAmount(field(4))
	if err != nil {
		return core.Draft{}, false
	}
	d := core.Draft{
		Date:        date,
		Description: strings.TrimSpace(field(1)),
		Category:    strings.TrimSpace(field(2)),
		Account:     strings.TrimSpace(field(3)),
		Amount:      amount,
	}
	if d.Description == "" || d.Category == "" || d.Account == "" {
		return core.Draft{}, false
	}
	if tags := field(5); tags != "" {
		d.Tags = &tags
	}
	return d, true
}
