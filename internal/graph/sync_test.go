package graph

import (
	"strings"
	"testing"
)

func newSpaces(names ...string) *Document {
	d := NewDocument()
	for _, n := range names {
		d.AddEntity("g-"+n, n, "")
	}
	return d
}

func analysisWrite(key string, diff float64, within string) BagWrite {
	return BagWrite{
		Key: key,
		Bag: "Pset_SollIst",
		Attributes: []Attribute{
			{Name: "Difference", Value: Number(diff)},
			{Name: "WithinPlan", Value: Text(within)},
		},
	}
}

func TestApplyUpsertCollectsWarnings(t *testing.T) {
	d := newSpaces("R1", "R2")
	s := NewSynchronizer(d)

	res := s.Apply([]BagWrite{
		analysisWrite("r1", -2, "no"),
		analysisWrite("R9", 1, "yes"),
		analysisWrite("R2", 0, "yes"),
		{Key: "R2"},
	}, ModeUpsert)

	if res.Updated != 2 || res.Skipped != 2 {
		t.Fatalf("got updated=%d skipped=%d, want 2/2", res.Updated, res.Skipped)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %#v", res.Warnings)
	}
	if res.Warnings[0].Key != "R9" || !strings.Contains(res.Warnings[0].Message, "no space") {
		t.Fatalf("unexpected first warning %#v", res.Warnings[0])
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// a second pass replaces values without duplicating bags
	res = s.Apply([]BagWrite{analysisWrite("R1", 4, "yes")}, ModeUpsert)
	if res.Updated != 1 {
		t.Fatalf("second pass updated=%d", res.Updated)
	}
	e, _, _ := d.MatchEntity("R1")
	if attrs, _ := d.Attributes(e, "Pset_SollIst"); attrs["Difference"] != "4" || attrs["WithinPlan"] != "yes" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}
	if n := len(d.BagsOf(e)); n != 1 {
		t.Fatalf("expected one bag on R1, got %d", n)
	}
}

func TestApplyCreateReportsConflicts(t *testing.T) {
	d := newSpaces("R1")
	s := NewSynchronizer(d)

	first := s.Apply([]BagWrite{analysisWrite("R1", 1, "yes")}, ModeCreate)
	if first.Updated != 1 || first.Skipped != 0 {
		t.Fatalf("unexpected first result %#v", first)
	}
	second := s.Apply([]BagWrite{analysisWrite("R1", 2, "no")}, ModeCreate)
	if second.Updated != 0 || second.Skipped != 1 || len(second.Warnings) != 1 {
		t.Fatalf("unexpected conflict result %#v", second)
	}
	if !strings.Contains(second.Warnings[0].Message, "already exists") {
		t.Fatalf("unexpected warning %q", second.Warnings[0].Message)
	}
	e, _, _ := d.MatchEntity("R1")
	if attrs, _ := d.Attributes(e, "Pset_SollIst"); attrs["Difference"] != "1" {
		t.Fatalf("conflicting create must not change values, got %#v", attrs)
	}
}

func TestApplyWarnsOnAmbiguousMatch(t *testing.T) {
	d := newSpaces("R1", "r1")
	res := NewSynchronizer(d).Apply([]BagWrite{analysisWrite("R1", 1, "yes")}, ModeUpsert)
	if res.Updated != 1 || len(res.Warnings) != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
}

func TestRemove(t *testing.T) {
	d := newSpaces("R1", "R2", "R3")
	s := NewSynchronizer(d)
	s.Apply([]BagWrite{analysisWrite("R1", 1, "yes"), analysisWrite("R2", 1, "yes")}, ModeUpsert)

	res := s.Remove("Pset_SollIst", "R1", "R3", "R7")
	if res.Updated != 1 || res.Skipped != 2 || res.Removed != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
	all := s.Remove("Pset_SollIst")
	if all.Removed != 1 {
		t.Fatalf("expected remaining bag to be removed, got %#v", all)
	}
	if len(d.Bags()) != 0 || len(d.Relations()) != 0 {
		t.Fatalf("expected empty graph")
	}
}

func TestRemoveCountsEachSpaceOnce(t *testing.T) {
	d := newSpaces("R1", "R2")
	s := NewSynchronizer(d)
	s.Apply([]BagWrite{analysisWrite("R1", 1, "yes"), analysisWrite("R2", 1, "yes")}, ModeUpsert)

	res := s.Remove("Pset_SollIst", "R1", "r1", " R1 ")
	if res.Updated != 1 || res.Skipped != 2 || res.Removed != 1 {
		t.Fatalf("unexpected result %#v", res)
	}
	if len(res.Warnings) != 2 || res.Warnings[0].Key != "r1" || !strings.Contains(res.Warnings[0].Message, "already selected") {
		t.Fatalf("unexpected warnings %#v", res.Warnings)
	}
	e, _, _ := d.MatchEntity("R2")
	if _, ok := d.Attributes(e, "Pset_SollIst"); !ok {
		t.Fatalf("R2 must keep its bag")
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
