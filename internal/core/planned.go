package core

import (
	"math"
	"strconv"
	"strings"
)

// BuildPlanned turns planned-quantity rows into a category table. Rows with
// duplicate categories are summed. Rows whose quantity is not a finite
// number, or whose category is blank, are skipped and counted.
func BuildPlanned(rows []PlannedRow) (planned map[string]float64, skipped int) {
	planned = make(map[string]float64, len(rows))
	for _, row := range rows {
		category := strings.TrimSpace(row.Category)
		qty, ok := ParseQuantity(row.Quantity)
		if category == "" || !ok {
			skipped++
			continue
		}
		planned[category] += qty
	}
	return planned, skipped
}

// ParseQuantity parses a cell value as a number. Surrounding whitespace is
// ignored and a single comma is accepted as decimal separator.
func ParseQuantity(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatQuantity renders a number for PlannedRow.Quantity.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
