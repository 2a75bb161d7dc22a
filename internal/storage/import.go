package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"fintrack/internal/core"
)

// DraftSource yields validated drafts until it returns io.EOF.
type DraftSource interface {
	Next() (core.Draft, error)
}

// Import inserts every draft from src inside a single transaction. Any error
// from src or from an insert rolls the whole batch back.
func (r *SQLiteRepository) Import(ctx context.Context, src DraftSource) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (date, description, category, account, amount, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare import insert: %w", err)
	}
	defer stmt.Close()

	stamp := r.stamp()
	count := 0
	for {
		d, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read import row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, d.Date, d.Description, d.Category, d.Account,
			d.Amount, nullString(d.Tags), stamp); err != nil {
			return 0, fmt.Errorf("insert import row %d: %w", count+1, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Transactions imported", "count", count)
	return count, nil
}
