package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// Order selects the row order of List.
type Order int

const (
	// NewestFirst is used by the list endpoint.
	NewestFirst Order = iota
	// OldestFirst is used by exports.
	OldestFirst
)

func (o Order) sql() string {
	if o == OldestFirst {
		return "ORDER BY date ASC, id ASC"
	}
	return "ORDER BY date DESC, id DESC"
}

const selectColumns = "SELECT id, date, description, category, account, amount, tags, created_at, updated_at FROM transactions"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts a transaction and returns the stored row.
func (r *SQLiteRepository) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (date, description, category, account, amount, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Date, d.Description, d.Category, d.Account, d.Amount, nullString(d.Tags), r.stamp())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", id,
		"date", d.Date,
		"category", d.Category,
		"amount", d.Amount)

	return r.Get(ctx, id)
}

// Get returns the transaction with the given id or core.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction by id: %w", err)
	}
	return tx, nil
}

// List returns every transaction matching f in the requested order.
func (r *SQLiteRepository) List(ctx context.Context, f core.Filter, order Order) ([]core.Transaction, error) {
	where, args := BuildWhere(f)
	query := selectColumns + " " + where + " " + order.sql()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Update applies the fields set in p and refreshes updated_at. It returns the
// number of rows changed, which is 0 when id does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, p core.Patch) (int64, error) {
	if p.IsEmpty() {
		return 0, core.ErrNothingToUpdate
	}

	var (
		sets []string
		args []any
	)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if v, ok := p.Date.Get(); ok {
		set("date", v)
	}
	if v, ok := p.Description.Get(); ok {
		set("description", v)
	}
	if v, ok := p.Category.Get(); ok {
		set("category", v)
	}
	if v, ok := p.Account.Get(); ok {
		set("account", v)
	}
	if v, ok := p.Amount.Get(); ok {
		set("amount", v)
	}
	if v, ok := p.Tags.Get(); ok {
		set("tags", nullString(v))
	}
	set("updated_at", r.stamp())
	args = append(args, id)

	query := "UPDATE transactions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Delete removes the row if present. Deleting a missing id is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(core.TimestampLayout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		tags      sql.NullString
		createdAt string
		updatedAt sql.NullString
	)
	if err := s.Scan(&tx.ID, &tx.Date, &tx.Description, &tx.Category, &tx.Account,
		&tx.Amount, &tags, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	if tags.Valid {
		v := tags.String
		tx.Tags = &v
	}
	ts, err := parseTimestamp(createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	tx.CreatedAt = ts
	if updatedAt.Valid {
		ts, err := parseTimestamp(updatedAt.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
		}
		tx.UpdatedAt = &ts
	}
	return tx, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(core.TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
