package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"
)

// ErrRecordNotFound is matched by errors.Is against NotFoundError.
var ErrRecordNotFound = errors.New("record not found")

// NotFoundError reports a lookup miss for a specific record.
type NotFoundError struct {
	Kind core.RecordKind
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s record not found with id: %d", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrRecordNotFound
}

// EventPublisher publishes record change events for downstream consumers.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, msg *amqp.RecordEventMessage) error
}

// LedgerService is the aggregation engine and record lifecycle manager for
// one user's income or expense ledger. Every operation takes an
// already-resolved owner identity; calling without one is a programming
// error, not a recoverable case.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewLedgerService(storage *storage.SQLiteRepository, events EventPublisher) *LedgerService {
	return &LedgerService{storage: storage, events: events}
}

// FindAll computes the aggregation result for an owner's ledger of the given
// kind. The filter token may be empty or core.AllCategories (no filter), a
// valid category name (restrict the record set and compute a filtered
// total), or anything else, which silently falls back to no filter.
//
// The month total comes from a separate query so it reflects the current
// calendar month regardless of filter. The two queries are not a consistent
// snapshot under concurrent writes; that window is accepted.
func (s *LedgerService) FindAll(ctx context.Context, ownerID int64, kind core.RecordKind, filter string) (core.RecordSet, error) {
	records, err := s.storage.ListRecordsByOwner(ctx, kind, ownerID)
	if err != nil {
		return core.RecordSet{}, fmt.Errorf("list records: %w", err)
	}

	total := core.SumAmounts(records)

	// Record dates are UTC, so the current month must be too.
	now := time.Now().UTC()
	monthRecords, err := s.storage.ListRecordsByOwnerMonth(ctx, kind, ownerID, now.Year(), int(now.Month()))
	if err != nil {
		return core.RecordSet{}, fmt.Errorf("list month records: %w", err)
	}
	monthTotal := core.SumAmounts(monthRecords)

	set := core.RecordSet{
		Records:      records,
		Total:        total,
		AverageTotal: total.SpreadOverYear(),
		MonthTotal:   monthTotal,
	}

	if filter == "" || filter == core.AllCategories {
		return set, nil
	}
	if !core.ValidCategory(kind, filter) {
		// Unrecognized filter tokens behave as "no filter" rather than
		// an error, matching the original page behavior.
		slog.DebugContext(ctx, "Ignoring unknown category filter", "kind", kind, "filter", filter)
		return set, nil
	}

	filtered := make([]core.Record, 0, len(records))
	for _, r := range records {
		if r.Category == filter {
			filtered = append(filtered, r)
		}
	}
	filteredTotal := core.SumAmounts(filtered)

	set.Records = filtered
	set.FilteredTotal = &filteredTotal
	set.AverageTotal = filteredTotal.SpreadOverYear()
	return set, nil
}

// FindRecord fetches a record by id. Callers are responsible for checking
// ownership before exposing the result.
func (s *LedgerService) FindRecord(ctx context.Context, kind core.RecordKind, id int64) (*core.Record, error) {
	rec, err := s.storage.GetRecord(ctx, kind, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Kind: kind, ID: id}
		}
		return nil, fmt.Errorf("find record: %w", err)
	}
	return rec, nil
}

// SaveRecord validates and persists a new record owned by ownerID.
func (s *LedgerService) SaveRecord(ctx context.Context, ownerID int64, kind core.RecordKind, category string, amount core.Money, date core.Date, description string) (*core.Record, error) {
	rec := core.Record{
		Kind:        kind,
		Category:    category,
		Amount:      amount,
		Date:        date,
		Description: description,
		UserID:      ownerID,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	created, err := s.storage.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	s.publishEvent(ctx, kind, amqp.ActionCreated, created.ID)
	return created, nil
}

// UpdateRecord loads a record and overwrites all four mutable fields. A miss
// propagates NotFoundError.
func (s *LedgerService) UpdateRecord(ctx context.Context, kind core.RecordKind, id int64, category string, amount core.Money, date core.Date, description string) (*core.Record, error) {
	rec, err := s.FindRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	rec.Category = category
	rec.Amount = amount
	rec.Date = date
	rec.Description = description
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	if err := s.storage.UpdateRecord(ctx, *rec); err != nil {
		return nil, fmt.Errorf("update record: %w", err)
	}

	s.publishEvent(ctx, kind, amqp.ActionUpdated, id)
	return rec, nil
}

// DeleteRecord removes a record by id. A missing id is not an error; the
// store's delete is a no-op on miss.
func (s *LedgerService) DeleteRecord(ctx context.Context, kind core.RecordKind, id int64) error {
	if err := s.storage.DeleteRecord(ctx, kind, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	s.publishEvent(ctx, kind, amqp.ActionDeleted, id)
	return nil
}

// publishEvent notifies downstream consumers of a record change. Publishing
// is best-effort: the record is already durable locally, so a broker failure
// never fails the request.
func (s *LedgerService) publishEvent(ctx context.Context, kind core.RecordKind, action string, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRecordEvent(ctx, amqp.NewRecordEventMessage(kind, action, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"kind", kind, "action", action, "id", id, "error", err)
	}
}
