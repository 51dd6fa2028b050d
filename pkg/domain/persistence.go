package domain

import (
	"context"
	"fmt"
)

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	View() TransactionView
	ReplaceSnapshot(building string, snapshot Snapshot) error
	CreateRun(run AnalysisRun) (AnalysisRun, error)
	DeleteRun(id string) error
}

// TransactionView provides read-only access to a state snapshot.
type TransactionView interface {
	Snapshot(building string) (Snapshot, bool)
	FindRun(id string) (AnalysisRun, bool)
	ListRuns(building string) []AnalysisRun
	Buildings() []string
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSnapshot(building string) (Snapshot, bool)
	GetRun(id string) (AnalysisRun, bool)
	ListRuns(building string) []AnalysisRun
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
