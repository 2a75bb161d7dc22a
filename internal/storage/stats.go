package storage

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/core"
)

// Aggregate computes totals, the monthly series and per-category sums for the
// rows matching f. All three queries read the same snapshot.
func (r *SQLiteRepository) Aggregate(ctx context.Context, f core.Filter) (core.Stats, error) {
	where, args := BuildWhere(f)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Stats{}, fmt.Errorf("begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	stats := core.Stats{
		Series:     make([]core.MonthTotal, 0),
		ByCategory: make([]core.CategoryTotal, 0),
	}

	totals := `SELECT
		COALESCE(SUM(CASE WHEN amount >= 0 THEN amount END), 0),
		COALESCE(SUM(CASE WHEN amount < 0 THEN amount END), 0)
		FROM transactions ` + where
	if err := tx.QueryRowContext(ctx, totals, args...).Scan(&stats.Income, &stats.Expense); err != nil {
		return core.Stats{}, fmt.Errorf("query totals: %w", err)
	}
	stats.Balance = stats.Income + stats.Expense

	series := `SELECT substr(date, 1, 7) AS ym, SUM(amount) AS total
		FROM transactions ` + where + `
		GROUP BY ym ORDER BY ym ASC`
	err = queryEach(ctx, tx, series, args, func(rows *sql.Rows) error {
		var m core.MonthTotal
		if err := rows.Scan(&m.YM, &m.Total); err != nil {
			return err
		}
		stats.Series = append(stats.Series, m)
		return nil
	})
	if err != nil {
		return core.Stats{}, fmt.Errorf("query monthly series: %w", err)
	}

	byCategory := `SELECT category, SUM(amount) AS total
		FROM transactions ` + where + `
		GROUP BY category ORDER BY total ASC, category ASC`
	err = queryEach(ctx, tx, byCategory, args, func(rows *sql.Rows) error {
		var c core.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Total); err != nil {
			return err
		}
		stats.ByCategory = append(stats.ByCategory, c)
		return nil
	})
	if err != nil {
		return core.Stats{}, fmt.Errorf("query category totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Stats{}, fmt.Errorf("commit stats transaction: %w", err)
	}
	return stats, nil
}

func queryEach(ctx context.Context, tx *sql.Tx, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
