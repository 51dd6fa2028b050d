package core

import (
	"math"
	"strings"
	"testing"
)

func TestAnalyzeExample(t *testing.T) {
	rows := Analyze(map[string]float64{"Office": 100}, []CategoryQuantity{{Category: "Office", Quantity: 50}, {Category: "Storage", Quantity: 20}})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	office, storage := rows[0], rows[1]
	if office.Category != "Office" || office.PlannedQuantity != 100 || office.ActualQuantity != 50 || office.Percentage != 50 {
		t.Fatalf("unexpected office row %+v", office)
	}
	if storage.Category != "Storage" || storage.PlannedQuantity != 0 || storage.ActualQuantity != 20 || storage.Percentage != SentinelPercentage {
		t.Fatalf("unexpected storage row %+v", storage)
	}
}

func TestAnalyzeGroupsCaseInsensitively(t *testing.T) {
	rows := Analyze(
		map[string]float64{"office": 10, "Lab": 0},
		[]CategoryQuantity{{Category: "OFFICE", Quantity: 4}, {Category: " Office ", Quantity: 6}, {Category: "lab", Quantity: 0}, {Category: "kitchen", Quantity: 1}},
	)
	if len(rows) != 3 {
		t.Fatalf("expected 3 categories, got %+v", rows)
	}
	want := []struct {
		name   string
		actual float64
		pct    float64
	}{
		{"kitchen", 1, SentinelPercentage},
		{"Lab", 0, 0},
		{"office", 10, 100},
	}
	for i, w := range want {
		if rows[i].Category != w.name || rows[i].ActualQuantity != w.actual || rows[i].Percentage != w.pct {
			t.Fatalf("row %d: got %+v, want %+v", i, rows[i], w)
		}
	}
}

func TestAnalyzeIsCompleteAndFinite(t *testing.T) {
	planned := map[string]float64{"A": 3, "b": 0, "C": -4, "D": 7, "nan": math.NaN()}
	actual := []CategoryQuantity{{Category: "a", Quantity: 1}, {Category: "B", Quantity: 2}, {Category: "c", Quantity: 5}, {Category: "E", Quantity: 0}, {Category: "F", Quantity: 2.5}, {Category: "inf", Quantity: math.Inf(1)}}
	rows := Analyze(planned, actual)

	seen := make(map[string]int)
	for _, r := range rows {
		if math.IsNaN(r.Percentage) || math.IsInf(r.Percentage, 0) {
			t.Fatalf("non-finite percentage in %+v", r)
		}
		seen[strings.ToLower(r.Category)]++
	}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		if seen[name] != 1 {
			t.Fatalf("category %q appears %d times", name, seen[name])
		}
	}
	if len(rows) != 6 {
		t.Fatalf("non-finite inputs must be dropped, got %+v", rows)
	}
}

func TestAnalyzeWithToleranceClassifiesRows(t *testing.T) {
	rows := AnalyzeWithTolerance(map[string]float64{"Office": 10, "Lab": 10}, []CategoryQuantity{{Category: "Office", Quantity: 10.5}, {Category: "Lab", Quantity: 5}}, Tolerance{MinPct: -10, MaxPct: 10})
	if rows[0].Category != "Lab" || rows[0].Deviation.Status != StatusUnder {
		t.Fatalf("unexpected lab row %+v", rows[0])
	}
	if rows[1].Deviation.Status != StatusOK || rows[1].Deviation.Delta != 0.5 {
		t.Fatalf("unexpected office row %+v", rows[1])
	}
}

func TestPercentageRounding(t *testing.T) {
	cases := []struct {
		planned, actual, want float64
	}{
		{3, 1, 33.33},
		{3, 2, 66.67},
		{0, 0, 0},
		{0, 5, SentinelPercentage},
		{-4, 2, -50},
	}
	for _, tc := range cases {
		if got := Percentage(tc.planned, tc.actual); got != tc.want {
			t.Fatalf("Percentage(%v, %v) = %v, want %v", tc.planned, tc.actual, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := map[float64]string{
		33.333:       "33.33",
		100:          "100.00",
		math.NaN():   PercentPlaceholder,
		math.Inf(-1): PercentPlaceholder,
	}
	for in, want := range cases {
		if got := FormatPercent(in); got != want {
			t.Fatalf("FormatPercent(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPlanned(t *testing.T) {
	planned, skipped := BuildPlanned([]PlannedRow{
		{Category: "Office", Quantity: "10"},
		{Category: " Office", Quantity: "2,5"},
		{Category: "Lab", Quantity: " 4 "},
		{Category: "Lab", Quantity: "n/a"},
		{Category: "", Quantity: "3"},
		{Category: "Store", Quantity: "NaN"},
		{Category: "Store", Quantity: "1,000.5"},
	})
	if skipped != 4 {
		t.Fatalf("expected 4 skipped rows, got %d", skipped)
	}
	if planned["Office"] != 12.5 || planned["Lab"] != 4 || len(planned) != 2 {
		t.Fatalf("unexpected planned table %v", planned)
	}
}

func TestParseQuantity(t *testing.T) {
	ok := map[string]float64{"1": 1, "-2.5": -2.5, "3,25": 3.25, " 7 ": 7, "1e2": 100}
	for in, want := range ok {
		got, valid := ParseQuantity(in)
		if !valid || got != want {
			t.Fatalf("ParseQuantity(%q) = %v, %v", in, got, valid)
		}
	}
	for _, in := range []string{"", "abc", "1,2,3", "Inf", "1.5,2"} {
		if _, valid := ParseQuantity(in); valid {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
	if FormatQuantity(12.5) != "12.5" || FormatQuantity(3) != "3" {
		t.Fatalf("unexpected FormatQuantity output")
	}
}
