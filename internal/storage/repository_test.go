package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func strPtr(s string) *string { return &s }

func mustCreate(t *testing.T, repo *SQLiteRepository, d core.Draft) core.Transaction {
	t.Helper()
	tx, err := repo.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tx
}

func seed(t *testing.T, repo *SQLiteRepository) {
	t.Helper()
	for _, d := range []core.Draft{
		{Date: "2024-03-01", Description: "Salary", Category: "Income", Account: "Checking", Amount: 5000},
		{Date: "2024-03-05", Description: "Groceries", Category: "Food", Account: "Card", Amount: -120.5, Tags: strPtr("weekly")},
		{Date: "2024-03-20", Description: "Dinner out", Category: "Food", Account: "Card", Amount: -60},
		{Date: "2024-04-02", Description: "Rent", Category: "Housing", Account: "Checking", Amount: -1200},
		{Date: "2024-04-15", Description: "Refund", Category: "Food", Account: "Savings", Amount: 20},
	} {
		mustCreate(t, repo, d)
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	created := mustCreate(t, repo, core.Draft{
		Date: "2024-03-01", Description: "Salary", Category: "Income", Account: "Checking", Amount: 5000,
	})
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if !created.CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %v, got %v", fixed, created.CreatedAt)
	}
	if created.Tags != nil || created.UpdatedAt != nil {
		t.Fatalf("expected null tags and updated_at: %+v", created)
	}

	got, err := repo.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != "Salary" || got.Amount != 5000 {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, err := repo.Get(context.Background(), created.ID+100); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	all, err := repo.List(ctx, core.Filter{}, NewestFirst)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 || all[0].Description != "Refund" || all[4].Description != "Salary" {
		t.Fatalf("unexpected newest-first order: %+v", all)
	}

	asc, err := repo.List(ctx, core.Filter{}, OldestFirst)
	if err != nil {
		t.Fatalf("list asc: %v", err)
	}
	if asc[0].Description != "Salary" || asc[4].Description != "Refund" {
		t.Fatalf("unexpected oldest-first order: %+v", asc)
	}

	cases := []struct {
		name   string
		filter core.Filter
		want   int
	}{
		{"march", core.Filter{From: "2024-03-01", To: "2024-03-31"}, 3},
		{"food", core.Filter{Category: "Food"}, 3},
		{"q matches tags", core.Filter{Q: "WEEK"}, 1},
		{"q matches account", core.Filter{Q: "sav"}, 1},
		{"q literal percent", core.Filter{Q: "%"}, 0},
		{"combined", core.Filter{Category: "Food", From: "2024-04-01"}, 1},
		{"no match", core.Filter{Category: "Travel"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.filter, NewestFirst)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, len(got))
			}
		})
	}
}

func TestUpdateTagsOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	before := mustCreate(t, repo, core.Draft{
		Date: "2024-03-05", Description: "Groceries", Category: "Food", Account: "Card", Amount: -120.5,
	})

	later := time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return later }

	n, err := repo.Update(ctx, before.ID, core.Patch{Tags: core.Some(strPtr("x"))})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}

	after, err := repo.Get(ctx, before.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Tags == nil || *after.Tags != "x" {
		t.Fatalf("expected tags=x, got %v", after.Tags)
	}
	if after.UpdatedAt == nil || !after.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, after.UpdatedAt)
	}
	if after.Date != before.Date || after.Description != before.Description ||
		after.Category != before.Category || after.Account != before.Account ||
		after.Amount != before.Amount || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("other fields changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestUpdateMissingAndEmpty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.Update(ctx, 999, core.Patch{Amount: core.Some(1.0)})
	if err != nil {
		t.Fatalf("update missing id should not fail: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows affected, got %d", n)
	}

	if _, err := repo.Update(ctx, 1, core.Patch{}); !errors.Is(err, core.ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tx := mustCreate(t, repo, core.Draft{Date: "2024-01-01", Description: "a", Category: "c", Account: "x", Amount: 1})

	if err := repo.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("deleting twice should succeed: %v", err)
	}

	next := mustCreate(t, repo, core.Draft{Date: "2024-01-02", Description: "b", Category: "c", Account: "x", Amount: 2})
	if next.ID <= tx.ID {
		t.Fatalf("ids must not be reused: %d <= %d", next.ID, tx.ID)
	}
}

func TestAggregate(t *testing.T) {
	repo := newTestRepo(t)
	seed(t, repo)
	ctx := context.Background()

	stats, err := repo.Aggregate(ctx, core.Filter{})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if stats.Income != 5020 || stats.Expense != -1380.5 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.Balance != stats.Income+stats.Expense {
		t.Fatalf("balance mismatch: %+v", stats)
	}

	wantSeries := []core.MonthTotal{{YM: "2024-03", Total: 4819.5}, {YM: "2024-04", Total: -1180}}
	if len(stats.Series) != len(wantSeries) {
		t.Fatalf("unexpected series: %+v", stats.Series)
	}
	var seriesSum float64
	for i, m := range stats.Series {
		if m != wantSeries[i] {
			t.Fatalf("series[%d] = %+v, want %+v", i, m, wantSeries[i])
		}
		seriesSum += m.Total
	}
	if seriesSum != stats.Balance {
		t.Fatalf("series sum %v != balance %v", seriesSum, stats.Balance)
	}

	wantCats := []string{"Housing", "Food", "Income"}
	if len(stats.ByCategory) != len(wantCats) {
		t.Fatalf("unexpected byCategory: %+v", stats.ByCategory)
	}
	for i, c := range stats.ByCategory {
		if c.Category != wantCats[i] {
			t.Fatalf("byCategory[%d] = %s, want %s", i, c.Category, wantCats[i])
		}
	}
}

func TestAggregateMarchOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, core.Draft{Date: "2024-03-10", Description: "Coffee", Category: "Food", Account: "Card", Amount: -4})
	mustCreate(t, repo, core.Draft{Date: "2024-03-11", Description: "Bus", Category: "Travel", Account: "Card", Amount: -2.5})

	stats, err := repo.Aggregate(ctx, core.Filter{From: "2024-03-01", To: "2024-03-31"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if stats.Income != 0 {
		t.Fatalf("expected zero income, got %v", stats.Income)
	}
	if stats.Balance != stats.Expense || stats.Expense != -6.5 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if len(stats.Series) != 1 || stats.Series[0].YM != "2024-03" {
		t.Fatalf("expected a single March bucket: %+v", stats.Series)
	}
}

func TestAggregateEmpty(t *testing.T) {
	repo := newTestRepo(t)
	stats, err := repo.Aggregate(context.Background(), core.Filter{Category: "none"})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if stats.Income != 0 || stats.Expense != 0 || stats.Balance != 0 {
		t.Fatalf("expected zero totals: %+v", stats)
	}
	if stats.Series == nil || stats.ByCategory == nil {
		t.Fatalf("expected empty, non-nil slices")
	}
}

type sliceSource struct {
	drafts []core.Draft
	failAt int
}

func (s *sliceSource) Next() (core.Draft, error) {
	if s.failAt > 0 && len(s.drafts) < s.failAt {
		return core.Draft{}, errors.New("broken stream")
	}
	if len(s.drafts) == 0 {
		return core.Draft{}, io.EOF
	}
	d := s.drafts[0]
	s.drafts = s.drafts[1:]
	return d, nil
}

func TestImport(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	drafts := []core.Draft{
		{Date: "2024-01-01", Description: "a", Category: "c", Account: "x", Amount: 1},
		{Date: "2024-01-02", Description: "b", Category: "c", Account: "x", Amount: -2, Tags: strPtr("t")},
	}

	n, err := repo.Import(ctx, &sliceSource{drafts: drafts})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported, got %d", n)
	}
	rows, _ := repo.List(ctx, core.Filter{}, OldestFirst)
	if len(rows) != 2 || rows[1].Tags == nil || *rows[1].Tags != "t" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestImportRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	src := &sliceSource{
		drafts: []core.Draft{
			{Date: "2024-01-01", Description: "a", Category: "c", Account: "x", Amount: 1},
			{Date: "2024-01-02", Description: "b", Category: "c", Account: "x", Amount: 2},
		},
		failAt: 2, // fails once one draft has been consumed
	}

	if _, err := repo.Import(ctx, src); err == nil {
		t.Fatalf("expected import error")
	}
	rows, err := repo.List(ctx, core.Filter{}, NewestFirst)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", len(rows))
	}
}
