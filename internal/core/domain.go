package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the only accepted transaction date format.
const DateLayout = "2006-01-02"

// TimestampLayout is how created_at/updated_at are stored in SQLite.
const TimestampLayout = "2006-01-02 15:04:05"

type (
	// Transaction is one ledger row. Amount >= 0 is income, < 0 is expense.
	Transaction struct {
		ID          int64      `json:"id"`
		Date        string     `json:"date"`
		Description string     `json:"description"`
		Category    string     `json:"category"`
		Account     string     `json:"account"`
		Amount      float64    `json:"amount"`
		Tags        *string    `json:"tags"`
		CreatedAt   time.Time  `json:"created_at"`
		UpdatedAt   *time.Time `json:"updated_at"`
	}

	// Filter narrows list, stats and export queries. Empty fields are ignored.
	Filter struct {
		From     string
		To       string
		Category string
		Q        string
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNothingToUpdate = errors.New("nothing to update")
	ErrHeaderMismatch  = errors.New("csv header mismatch")
	ErrUpload          = errors.New("file upload failed")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a YYYY-MM-DD string naming a real calendar day.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// Income reports whether the transaction counts towards income.
func (t Transaction) Income() bool {
	return t.Amount >= 0
}

// Normalize trims every criterion.
func (f Filter) Normalize() Filter {
	return Filter{
		From:     strings.TrimSpace(f.From),
		To:       strings.TrimSpace(f.To),
		Category: strings.TrimSpace(f.Category),
		Q:        strings.TrimSpace(f.Q),
	}
}

// IsEmpty returns true when no criterion is set.
func (f Filter) IsEmpty() bool {
	n := f.Normalize()
	return n.From == "" && n.To == "" && n.Category == "" && n.Q == ""
}

// Key is a stable identifier for the filter, used as a cache key.
func (f Filter) Key() string {
	n := f.Normalize()
	return strings.Join([]string{n.From, n.To, n.Category, n.Q}, "\x1f")
}
