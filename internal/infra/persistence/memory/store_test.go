package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sollist/pkg/domain"
)

func sampleRun(id, building string, at time.Time) AnalysisRun {
	return AnalysisRun{
		ID:        id,
		Building:  building,
		Tolerance: domain.DefaultTolerance,
		CreatedAt: at,
		Rows: []domain.CategoryAnalysis{{
			Category:        "Office",
			PlannedQuantity: 10,
			ActualQuantity:  12,
			Percentage:      120,
			Deviation:       domain.Deviation{Delta: 2, Status: domain.StatusOver},
		}},
	}
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.ReplaceSnapshot("Main ", Snapshot{"R1": {Name: "R1", Category: "Office", Quantity: 10}}); err != nil {
			return err
		}
		if _, err := tx.CreateRun(sampleRun("b", "main", base.Add(time.Minute))); err != nil {
			return err
		}
		_, err := tx.CreateRun(sampleRun("a", "Main", base))
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	snap, ok := store.GetSnapshot("MAIN")
	if !ok || snap["R1"].Quantity != 10 {
		t.Fatalf("expected snapshot for main, got %#v", snap)
	}
	runs := store.ListRuns("main")
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "b" {
		t.Fatalf("expected runs ordered by creation, got %#v", runs)
	}
	if got := store.ListRuns("other"); len(got) != 0 {
		t.Fatalf("expected no runs for other building, got %d", len(got))
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store := NewStore()
	boom := errors.New("boom")
	err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if err := tx.ReplaceSnapshot("main", Snapshot{"R1": {Name: "R1"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := store.GetSnapshot("main"); ok {
		t.Fatalf("failed transaction must not be visible")
	}
}

func TestCreateRunValidation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	at := time.Now()
	cases := map[string]AnalysisRun{
		"missing id":       sampleRun("", "main", at),
		"missing building": sampleRun("x", " ", at),
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			err := store.RunInTransaction(ctx, func(tx Transaction) error {
				_, err := tx.CreateRun(run)
				return err
			})
			if err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateRun(sampleRun("dup", "main", at))
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateRun(sampleRun("dup", "main", at))
		return err
	}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestDeleteRun(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateRun(sampleRun("r1", "main", time.Now()))
		return err
	})
	if err := store.RunInTransaction(ctx, func(tx Transaction) error { return tx.DeleteRun("r1") }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := store.RunInTransaction(ctx, func(tx Transaction) error { return tx.DeleteRun("r1") })
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.ID != "r1" {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadsAreIsolatedCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := tx.ReplaceSnapshot("main", Snapshot{"R1": {Name: "R1", Attributes: map[string]string{"k": "v"}}}); err != nil {
			return err
		}
		_, err := tx.CreateRun(sampleRun("r1", "main", time.Now()))
		return err
	})

	snap, _ := store.GetSnapshot("main")
	snap["R1"].Attributes["k"] = "mutated"
	run, _ := store.GetRun("r1")
	run.Rows[0].Category = "mutated"

	again, _ := store.GetSnapshot("main")
	if again["R1"].Attributes["k"] != "v" {
		t.Fatalf("snapshot mutated through returned copy")
	}
	if r, _ := store.GetRun("r1"); r.Rows[0].Category != "Office" {
		t.Fatalf("run mutated through returned copy")
	}
}

func TestExportImportState(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.ReplaceSnapshot("main", Snapshot{"R1": {Name: "R1", Quantity: 3}})
	})
	state := store.ExportState()

	other := NewStore()
	other.ImportState(State{Snapshots: map[string]Snapshot{"Main": state.Snapshots["main"]}})
	if snap, ok := other.GetSnapshot("main"); !ok || snap["R1"].Quantity != 3 {
		t.Fatalf("imported snapshot missing, got %#v", snap)
	}
	if len(other.ListRuns("")) != 0 {
		t.Fatalf("expected nil runs normalised to empty")
	}
	err := other.View(ctx, func(v TransactionView) error {
		if b := v.Buildings(); len(b) != 1 || b[0] != "main" {
			t.Fatalf("unexpected buildings %v", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
