package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"outlay/internal/amqp"
	"outlay/internal/core"
)

// ExpenseStore is the persistence surface the service needs. The SQLite
// repository satisfies it.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, id, ownerID string) (core.Expense, error)
	ListByOwner(ctx context.Context, ownerID string) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (int64, error)
	DeleteExpense(ctx context.Context, id, ownerID string) error
	Close() error
}

// EventPublisher emits expense change events. The AMQP client satisfies
// it; a nil publisher disables events entirely.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseService orchestrates expense operations across storage and the
// event broker. Every operation is scoped to the authenticated owner;
// there is no way to reach another owner's records through it.
type ExpenseService struct {
	store     ExpenseStore
	publisher EventPublisher
	now       func() time.Time
}

func NewExpenseService(store ExpenseStore, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Create validates and persists a new expense for owner, then publishes a
// created event. ID, OwnerID and CreatedAt are assigned here; anything
// the caller put in those fields is overwritten.
func (s *ExpenseService) Create(ctx context.Context, owner string, e core.Expense) (core.Expense, error) {
	e.ID = uuid.NewString()
	e.OwnerID = owner
	e.CreatedAt = core.Date{Time: s.now().UTC()}

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publishEvent(ctx, amqp.NewExpenseEvent(e.ID, owner, amqp.ActionCreated, 1))

	return e, nil
}

// Get returns one of owner's expenses.
func (s *ExpenseService) Get(ctx context.Context, owner, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, id, owner)
}

// List returns all of owner's expenses ordered by business date.
func (s *ExpenseService) List(ctx context.Context, owner string) ([]core.Expense, error) {
	return s.store.ListByOwner(ctx, owner)
}

// Update replaces the mutable fields of one of owner's expenses and
// publishes an updated event carrying the new version.
func (s *ExpenseService) Update(ctx context.Context, owner, id string, e core.Expense) (core.Expense, error) {
	e.ID = id
	e.OwnerID = owner

	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	version, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}

	updated, err := s.store.GetExpense(ctx, id, owner)
	if err != nil {
		return core.Expense{}, fmt.Errorf("reload expense: %w", err)
	}

	s.publishEvent(ctx, amqp.NewExpenseEvent(id, owner, amqp.ActionUpdated, version))

	return updated, nil
}

// Delete removes one of owner's expenses and publishes a deleted event.
func (s *ExpenseService) Delete(ctx context.Context, owner, id string) error {
	if err := s.store.DeleteExpense(ctx, id, owner); err != nil {
		return err
	}
	s.publishEvent(ctx, amqp.NewExpenseEvent(id, owner, amqp.ActionDeleted, 0))
	return nil
}

// QuickStats aggregates all of owner's expenses relative to now.
func (s *ExpenseService) QuickStats(ctx context.Context, owner string, now time.Time) (core.StatsSummary, error) {
	records, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return core.StatsSummary{}, fmt.Errorf("load expenses: %w", err)
	}
	return core.ComputeStats(records, now), nil
}

// publishEvent sends a change event without ever failing the request.
// Expenses are authoritative in storage; the event stream is best-effort
// and the export worker reconciles anything missed.
func (s *ExpenseService) publishEvent(ctx context.Context, event *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"id", event.ID,
			"action", event.Action,
			"error", err)
	}
}

// Close closes storage and the event publisher.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}
	return nil
}
