package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestReconcileExample(t *testing.T) {
	snapshot := Snapshot{"R1": {Name: "R1", Category: "Office", Quantity: 10}}
	fresh := []ActualRecord{
		{Name: "R1", Category: "Office", Quantity: 10},
		{Name: "R1", Category: "Office", Quantity: 10.005},
		{Name: "R2", Category: "Storage", Quantity: 5},
	}
	res := Reconcile(fresh, snapshot)
	if res.Added != 1 || res.Updated != 0 || res.Unchanged != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if len(res.Records) != 2 || res.Records[0].Record.Name != "R1" || res.Records[0].Class != DiffUnchanged {
		t.Fatalf("unexpected records %+v", res.Records)
	}
	if res.Records[0].Record.Quantity != 10.005 {
		t.Fatalf("last row for a name must win, got %v", res.Records[0].Record.Quantity)
	}
	if res.Records[1].Class != DiffAdded {
		t.Fatalf("expected R2 added, got %s", res.Records[1].Class)
	}
}

func TestReconcileUpdatesAndRemovals(t *testing.T) {
	snapshot := Snapshot{
		"R1": {Name: "R1", Category: "Office", Quantity: 10},
		"r2": {Name: "r2", Category: "Lab", Quantity: 4},
		"R3": {Name: "R3", Category: "Lab", Quantity: 1},
		"R4": {Name: "R4", Category: "Lab", Quantity: 1},
	}
	fresh := []ActualRecord{
		{Name: "r1", Category: "office", Quantity: 10.01},
		{Name: "R2", Category: "Office", Quantity: 4},
		{Name: "R3", Category: "Lab", Quantity: 1.02},
	}
	res := Reconcile(fresh, snapshot)
	want := []DiffClass{DiffUnchanged, DiffUpdated, DiffUpdated}
	for i, w := range want {
		if res.Records[i].Class != w {
			t.Fatalf("record %d (%s): got %s, want %s", i, res.Records[i].Record.Name, res.Records[i].Class, w)
		}
	}
	if len(res.Removed) != 1 || res.Removed[0] != "R4" {
		t.Fatalf("expected R4 removed, got %v", res.Removed)
	}

	next := SnapshotFromDiff(res)
	if len(next) != 3 {
		t.Fatalf("expected merged snapshot of 3, got %v", next)
	}
	if e, ok := next["R2"]; !ok || e.Category != "Office" {
		t.Fatalf("expected updated category in next snapshot, got %+v", e)
	}
}

func TestReconcilePartitionsDistinctNames(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	categories := []string{"Office", "office", "Lab", "Storage"}
	for iter := 0; iter < 200; iter++ {
		snapshot := Snapshot{}
		for i := 0; i < rng.IntN(6); i++ {
			name := fmt.Sprintf("R%d", rng.IntN(8))
			snapshot[name] = SnapshotEntry{Name: name, Category: categories[rng.IntN(len(categories))], Quantity: float64(rng.IntN(4))}
		}
		var fresh []ActualRecord
		distinct := map[string]bool{}
		for i := 0; i < rng.IntN(10); i++ {
			name := fmt.Sprintf("r%d", rng.IntN(8))
			if rng.IntN(2) == 0 {
				name = strings.ToUpper(name)
			}
			distinct[strings.ToLower(name)] = true
			fresh = append(fresh, ActualRecord{Name: name, Category: categories[rng.IntN(len(categories))], Quantity: float64(rng.IntN(4)) + rng.Float64()*0.02})
		}
		res := Reconcile(fresh, snapshot)
		if res.Total() != len(distinct) || len(res.Records) != len(distinct) {
			t.Fatalf("iteration %d: total %d, records %d, distinct names %d", iter, res.Total(), len(res.Records), len(distinct))
		}
		for _, name := range res.Removed {
			if distinct[strings.ToLower(name)] {
				t.Fatalf("iteration %d: %s observed but listed as removed", iter, name)
			}
		}
	}
}

func TestReconcileEmptyInputs(t *testing.T) {
	res := Reconcile(nil, nil)
	if res.Total() != 0 || len(res.Records) != 0 || len(res.Removed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	res = Reconcile(nil, Snapshot{"B": {Name: "B"}, "A": {Name: "A"}})
	if len(res.Removed) != 2 || res.Removed[0] != "A" {
		t.Fatalf("expected sorted removals, got %v", res.Removed)
	}
}

func TestReconcileDoesNotAliasInput(t *testing.T) {
	fresh := []ActualRecord{{Name: "R1", Attributes: map[string]string{"k": "v"}}}
	res := Reconcile(fresh, nil)
	res.Records[0].Record.Attributes["k"] = "changed"
	if fresh[0].Attributes["k"] != "v" {
		t.Fatalf("reconcile must copy attributes")
	}
}
