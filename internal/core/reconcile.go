package core

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// SentinelPercentage is reported for categories that occur without a plan.
const SentinelPercentage = 100

// PercentPlaceholder replaces non-finite numbers in rendered output.
const PercentPlaceholder = "-"

// Analyze compares planned quantities per category with the summed actual
// quantities. Categories are matched case-insensitively; the planned
// spelling is used when both sides name a category. Every category of
// either input appears exactly once, sorted by name ignoring case.
func Analyze(planned map[string]float64, actual []CategoryQuantity) []CategoryAnalysis {
	type bucket struct {
		name    string
		planned float64
		actual  float64
	}
	buckets := make(map[string]*bucket)

	// iterate planned keys in sorted order so spelling choice is stable
	keys := make([]string, 0, len(planned))
	for k := range planned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := planned[k]
		if !finite(v) {
			continue
		}
		fold := strings.ToLower(strings.TrimSpace(k))
		b, ok := buckets[fold]
		if !ok {
			b = &bucket{name: strings.TrimSpace(k)}
			buckets[fold] = b
		}
		b.planned += v
	}
	for _, a := range actual {
		if !finite(a.Quantity) {
			continue
		}
		fold := strings.ToLower(strings.TrimSpace(a.Category))
		b, ok := buckets[fold]
		if !ok {
			b = &bucket{name: strings.TrimSpace(a.Category)}
			buckets[fold] = b
		}
		b.actual += a.Quantity
	}

	out := make([]CategoryAnalysis, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, CategoryAnalysis{
			Category:        b.name,
			PlannedQuantity: b.planned,
			ActualQuantity:  b.actual,
			Percentage:      Percentage(b.planned, b.actual),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Category), strings.ToLower(out[j].Category)
		if li != lj {
			return li < lj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// AnalyzeWithTolerance runs Analyze and classifies every row against tol.
func AnalyzeWithTolerance(planned map[string]float64, actual []CategoryQuantity, tol Tolerance) []CategoryAnalysis {
	rows := Analyze(planned, actual)
	for i := range rows {
		rows[i].Deviation = ClassifyWith(rows[i].PlannedQuantity, rows[i].ActualQuantity, tol)
	}
	return rows
}

// Percentage returns actual as a share of planned in percent, rounded to two
// decimals. It is 0 when both are zero and SentinelPercentage when only the
// plan is zero. The result is always finite.
func Percentage(planned, actual float64) float64 {
	switch {
	case planned == 0 && actual == 0:
		return 0
	case planned == 0:
		return SentinelPercentage
	}
	pct := math.Round(actual/planned*100*100) / 100
	if !finite(pct) {
		return 0
	}
	return pct
}

// FormatPercent renders v with two decimals, or PercentPlaceholder when v
// is not finite.
func FormatPercent(v float64) string {
	if !finite(v) {
		return PercentPlaceholder
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Quantities reduces records to their category and quantity.
func Quantities(records []ActualRecord) []CategoryQuantity {
	out := make([]CategoryQuantity, len(records))
	for i, r := range records {
		out[i] = CategoryQuantity{Category: r.Category, Quantity: r.Quantity}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
