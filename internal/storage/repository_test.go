package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"outlay/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(id, owner string) core.Expense {
	return core.Expense{
		ID:        id,
		Title:     "Groceries",
		Amount:    core.Money{Cents: 1250},
		Category:  "Food",
		Date:      core.NewDate(2024, 3, 15),
		OwnerID:   owner,
		CreatedAt: core.Date{Time: time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)},
	}
}

func TestCreateAndGetExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := testExpense("exp-1", "alice@example.com")
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	got, err := repo.GetExpense(ctx, "exp-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Title != e.Title || got.Amount.Cents != e.Amount.Cents || got.Category != e.Category {
		t.Errorf("got %+v, want %+v", got, e)
	}
	if !got.Date.Time.Equal(e.Date.Time) {
		t.Errorf("date = %v, want %v", got.Date.Time, e.Date.Time)
	}
	if !got.CreatedAt.Time.Equal(e.CreatedAt.Time) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt.Time, e.CreatedAt.Time)
	}
}

func TestGetExpenseOwnerScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateExpense(ctx, testExpense("exp-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	// A different owner must see exactly the same error as a missing id.
	_, err := repo.GetExpense(ctx, "exp-1", "bob@example.com")
	if !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("other owner: err = %v, want ErrExpenseNotFound", err)
	}
	_, err = repo.GetExpense(ctx, "no-such-id", "alice@example.com")
	if !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("missing id: err = %v, want ErrExpenseNotFound", err)
	}
}

func TestListByOwnerOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	mk := func(id string, date core.Date, created time.Time) core.Expense {
		e := testExpense(id, "alice@example.com")
		e.Date = date
		e.CreatedAt = core.Date{Time: created}
		return e
	}

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of order on purpose.
	inserts := []core.Expense{
		mk("c", core.NewDate(2024, 3, 10), base.Add(2*time.Hour)),
		mk("a", core.NewDate(2024, 1, 5), base),
		mk("b", core.NewDate(2024, 3, 10), base.Add(time.Hour)),
	}
	for _, e := range inserts {
		if err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense(%s): %v", e.ID, err)
		}
	}

	got, err := repo.ListByOwner(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: id = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestListByOwnerFiltersOtherOwners(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateExpense(ctx, testExpense("exp-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if err := repo.CreateExpense(ctx, testExpense("exp-2", "bob@example.com")); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	got, err := repo.ListByOwner(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(got) != 1 || got[0].ID != "exp-1" {
		t.Errorf("got %d records, want only exp-1", len(got))
	}

	empty, err := repo.ListByOwner(ctx, "carol@example.com")
	if err != nil {
		t.Fatalf("ListByOwner empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown owner: got %d records, want 0", len(empty))
	}
}

func TestUpdateExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := testExpense("exp-1", "alice@example.com")
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	e.Title = "Weekly groceries"
	e.Amount = core.Money{Cents: 2000}
	e.Category = "Household"
	version, err := repo.UpdateExpense(ctx, e)
	if err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	got, err := repo.GetExpense(ctx, "exp-1", "alice@example.com")
	if err != nil {
		t.Fatalf("GetExpense: %v", err)
	}
	if got.Title != "Weekly groceries" || got.Amount.Cents != 2000 || got.Category != "Household" {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestUpdateExpenseNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := testExpense("exp-1", "alice@example.com")
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	wrongOwner := e
	wrongOwner.OwnerID = "bob@example.com"
	if _, err := repo.UpdateExpense(ctx, wrongOwner); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("other owner: err = %v, want ErrExpenseNotFound", err)
	}

	missing := e
	missing.ID = "no-such-id"
	if _, err := repo.UpdateExpense(ctx, missing); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("missing id: err = %v, want ErrExpenseNotFound", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateExpense(ctx, testExpense("exp-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	if err := repo.DeleteExpense(ctx, "exp-1", "bob@example.com"); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("other owner: err = %v, want ErrExpenseNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, "exp-1", "alice@example.com"); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if _, err := repo.GetExpense(ctx, "exp-1", "alice@example.com"); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("after delete: err = %v, want ErrExpenseNotFound", err)
	}
	if err := repo.DeleteExpense(ctx, "exp-1", "alice@example.com"); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("double delete: err = %v, want ErrExpenseNotFound", err)
	}
}

func TestExportLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := testExpense("exp-1", "alice@example.com")
	if err := repo.CreateExpense(ctx, e); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "exp-1" || pending[0].Version != 1 {
		t.Fatalf("pending = %+v, want exp-1 at version 1", pending)
	}

	if err := repo.MarkExported(ctx, "exp-1"); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("after export: %d pending, want 0", len(pending))
	}

	// An update re-queues the record and bumps its version.
	e.Title = "Changed"
	if _, err := repo.UpdateExpense(ctx, e); err != nil {
		t.Fatalf("UpdateExpense: %v", err)
	}
	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("after update: pending = %+v, want version 2", pending)
	}

	// Errored records drop out of the pending set.
	if err := repo.MarkExportError(ctx, "exp-1"); err != nil {
		t.Fatalf("MarkExportError: %v", err)
	}
	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("after error: %d pending, want 0", len(pending))
	}
}

func TestGetPendingExportsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		e := testExpense(id, "alice@example.com")
		e.CreatedAt = core.Date{Time: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("CreateExpense(%s): %v", id, err)
		}
	}

	pending, err := repo.GetPendingExports(ctx, 2)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "b" {
		t.Fatalf("pending = %+v, want [a b]", pending)
	}
}

func TestGetExpenseByIDUnscoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateExpense(ctx, testExpense("exp-1", "alice@example.com")); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}

	got, err := repo.GetExpenseByID(ctx, "exp-1")
	if err != nil {
		t.Fatalf("GetExpenseByID: %v", err)
	}
	if got.OwnerID != "alice@example.com" {
		t.Errorf("owner = %s, want alice@example.com", got.OwnerID)
	}
	if _, err := repo.GetExpenseByID(ctx, "nope"); !errors.Is(err, ErrExpenseNotFound) {
		t.Errorf("missing id: err = %v, want ErrExpenseNotFound", err)
	}
}
