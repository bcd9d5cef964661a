package sheets

import (
	"context"

	"outlay/internal/core"
)

// Ports for outbound export adapters.
type (
	// ExpenseExporter mirrors one expense to the export destination.
	ExpenseExporter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseRemover removes a previously exported expense by id.
	ExpenseRemover interface {
		Remove(ctx context.Context, id string) error
	}
)
