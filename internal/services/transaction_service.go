package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/csvio"
	"fintrack/internal/storage"
	"fintrack/internal/xlsxio"
)

// Repository is the persistence the service needs.
type Repository interface {
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context, f core.Filter, order storage.Order) ([]core.Transaction, error)
	Update(ctx context.Context, id int64, p core.Patch) (int64, error)
	Delete(ctx context.Context, id int64) error
	Aggregate(ctx context.Context, f core.Filter) (core.Stats, error)
	Import(ctx context.Context, src storage.DraftSource) (int, error)
	Ping(ctx context.Context) error
}

// Publisher sends change notifications. It may be nil.
type Publisher interface {
	Publish(ctx context.Context, event *amqp.TransactionEvent) error
}

// TransactionService validates input, talks to the repository and fans out
// change events. Stats are cached per filter until the next write.
type TransactionService struct {
	repo       Repository
	publisher  Publisher
	stats      cache.Cache[core.Stats]
	group      singleflight.Group
	generation atomic.Uint64
}

// NewTransactionService wires the service. publisher and statsCache are optional.
func NewTransactionService(repo Repository, publisher Publisher, statsCache cache.Cache[core.Stats]) *TransactionService {
	return &TransactionService{
		repo:      repo,
		publisher: publisher,
		stats:     statsCache,
	}
}

// List returns matching transactions, newest first.
func (s *TransactionService) List(ctx context.Context, f core.Filter) ([]core.Transaction, error) {
	txs, err := s.repo.List(ctx, f, storage.NewestFirst)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Get returns one transaction or core.ErrNotFound.
func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

// Create validates every field and stores a new transaction.
func (s *TransactionService) Create(ctx context.Context, in core.Input) (core.Transaction, error) {
	draft, err := core.ParseDraft(in)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.repo.Create(ctx, draft)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	s.invalidate()
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventCreated, tx.ID))
	return tx, nil
}

// Update applies the fields present in in. Updating an id that does not
// exist changes nothing and returns a nil transaction without error.
func (s *TransactionService) Update(ctx context.Context, id int64, in core.Input) (*core.Transaction, error) {
	patch, err := core.ParsePatch(in)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "Update matched no transaction", "transaction_id", id)
		return nil, nil
	}

	s.invalidate()
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventUpdated, id))

	tx, err := s.repo.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between the update and the read.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload transaction %d: %w", id, err)
	}
	return &tx, nil
}

// Delete removes a transaction. The id is echoed back even if nothing matched.
func (s *TransactionService) Delete(ctx context.Context, id int64) (int64, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.invalidate()
	s.publish(ctx, amqp.NewTransactionEvent(amqp.EventDeleted, id))
	return id, nil
}

// Stats aggregates the filtered set. Concurrent identical requests share one
// query and results are cached until the next write.
//
// Cache entries are keyed by write generation, so a result computed before a
// write can still be stored but is never read once the write has invalidated.
func (s *TransactionService) Stats(ctx context.Context, f core.Filter) (core.Stats, error) {
	key := fmt.Sprintf("%d|%s", s.generation.Load(), f.Key())
	if s.stats != nil {
		if st, ok := s.stats.Get(key); ok {
			return st, nil
		}
	}

	// The shared query must outlive any single caller that goes away.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(key, func() (any, error) {
		st, err := s.repo.Aggregate(flightCtx, f)
		if err != nil {
			return core.Stats{}, err
		}
		if s.stats != nil {
			s.stats.Set(key, st)
		}
		return st, nil
	})
	if err != nil {
		return core.Stats{}, fmt.Errorf("aggregate transactions: %w", err)
	}
	if shared {
		slog.DebugContext(ctx, "Stats query shared", "filter", key)
	}
	return v.(core.Stats), nil
}

// ExportCSV writes the filtered set, oldest first, as CSV.
func (s *TransactionService) ExportCSV(ctx context.Context, f core.Filter, w io.Writer) error {
	txs, err := s.repo.List(ctx, f, storage.OldestFirst)
	if err != nil {
		return fmt.Errorf("list for export: %w", err)
	}
	if err := csvio.Write(w, txs); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}

// ExportXLSX writes the filtered set, oldest first, as an Excel workbook.
func (s *TransactionService) ExportXLSX(ctx context.Context, f core.Filter, w io.Writer) error {
	txs, err := s.repo.List(ctx, f, storage.OldestFirst)
	if err != nil {
		return fmt.Errorf("list for export: %w", err)
	}
	if err := xlsxio.Write(w, txs); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	return nil
}

// Import reads a CSV file and inserts every valid row atomically. A bad
// header yields core.ErrHeaderMismatch and writes nothing.
func (s *TransactionService) Import(ctx context.Context, r io.Reader) (int, error) {
	reader, err := csvio.NewReader(r)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.Import(ctx, reader)
	if err != nil {
		return 0, fmt.Errorf("import transactions: %w", err)
	}

	slog.InfoContext(ctx, "CSV import finished",
		"imported", n,
		"skipped", reader.Skipped())

	if n > 0 {
		s.invalidate()
		s.publish(ctx, amqp.NewImportEvent(n))
	}
	return n, nil
}

// Ready reports whether the backing store answers.
func (s *TransactionService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *TransactionService) invalidate() {
	s.generation.Add(1)
	if s.stats != nil {
		s.stats.Clear()
	}
}

// publish never fails the caller; the write already succeeded locally.
func (s *TransactionService) publish(ctx context.Context, event *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"type", event.Type,
			"transaction_id", event.ID,
			"error", err)
	}
}
