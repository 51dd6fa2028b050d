// Package domain defines the value types shared by the planned-vs-actual
// analysis core, its persistence backends and its adapters.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// EntityType identifies the kind of record stored by a persistence backend.
type EntityType string

// Supported entity type identifiers used in errors and persistence buckets.
const (
	// EntitySnapshot identifies the last persisted record set of a building.
	EntitySnapshot EntityType = "snapshot"
	// EntityAnalysisRun identifies a stored category analysis run.
	EntityAnalysisRun EntityType = "analysis_run"
)

// Status classifies a deviation between planned and actual quantity.
type Status string

// Deviation statuses.
const (
	StatusOK    Status = "OK"
	StatusUnder Status = "UNDER"
	StatusOver  Status = "OVER"
)

// Deviation is the outcome of comparing a planned and an actual quantity.
// Percent is nil when the planned quantity is zero.
type Deviation struct {
	Delta   float64  `json:"delta"`
	Percent *float64 `json:"percent,omitempty"`
	Status  Status   `json:"status"`
}

// Tolerance is the inclusive percentage band within which a deviation is OK.
type Tolerance struct {
	MinPct float64 `json:"min_pct" yaml:"min_pct"`
	MaxPct float64 `json:"max_pct" yaml:"max_pct"`
}

// DefaultTolerance is used when no band is configured.
var DefaultTolerance = Tolerance{MinPct: -10, MaxPct: 10}

// ErrInvalidTolerance wraps tolerance band validation failures.
var ErrInvalidTolerance = errors.New("invalid tolerance")

// ValidateTolerance checks that the band is finite and contains zero.
func ValidateTolerance(tol Tolerance) error {
	for _, v := range []float64{tol.MinPct, tol.MaxPct} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: bounds must be finite, got [%v, %v]", ErrInvalidTolerance, tol.MinPct, tol.MaxPct)
		}
	}
	if tol.MinPct > 0 || tol.MaxPct < 0 {
		return fmt.Errorf("%w: band [%v, %v] must contain 0", ErrInvalidTolerance, tol.MinPct, tol.MaxPct)
	}
	return nil
}

// PlannedRow is one row of the planned-quantity table as read from a tabular
// source. Quantity holds the raw cell text; numbers read from typed cells
// are formatted before they reach this type.
type PlannedRow struct {
	Category string `json:"category" yaml:"category"`
	Quantity string `json:"quantity" yaml:"quantity"`
}

// CategoryQuantity is one actual occurrence reduced to its category and amount.
type CategoryQuantity struct {
	Category string
	Quantity float64
}

// ActualRecord is one concrete room read from an external model.
type ActualRecord struct {
	Category   string            `json:"category"`
	Name       string            `json:"name"`
	Quantity   float64           `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CategoryAnalysis compares the planned and actual quantity of one category.
type CategoryAnalysis struct {
	Category        string    `json:"category"`
	PlannedQuantity float64   `json:"planned_quantity"`
	ActualQuantity  float64   `json:"actual_quantity"`
	Percentage      float64   `json:"percentage"`
	Deviation       Deviation `json:"deviation"`
}

// SnapshotEntry is the last persisted state of one record.
type SnapshotEntry struct {
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Quantity   float64           `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Snapshot maps a record name to its last persisted state. Keys are the
// names as written.
type Snapshot map[string]SnapshotEntry

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, e := range s {
		out[k] = e.clone()
	}
	return out
}

func (e SnapshotEntry) clone() SnapshotEntry {
	cp := e
	cp.Attributes = cloneAttributes(e.Attributes)
	return cp
}

// DiffClass is the classification of one fresh record against a snapshot.
type DiffClass string

// Diff classifications.
const (
	DiffAdded     DiffClass = "added"
	DiffUpdated   DiffClass = "updated"
	DiffUnchanged DiffClass = "unchanged"
)

// RecordDiff pairs a merged record with its classification.
type RecordDiff struct {
	Record ActualRecord `json:"record"`
	Class  DiffClass    `json:"class"`
}

// DiffResult summarises a snapshot reconciliation. Records is the merged set
// to persist; Removed lists snapshot names that were not observed again.
type DiffResult struct {
	Added     int          `json:"added"`
	Updated   int          `json:"updated"`
	Unchanged int          `json:"unchanged"`
	Records   []RecordDiff `json:"records"`
	Removed   []string     `json:"removed,omitempty"`
}

// Total returns the number of classified records.
func (r DiffResult) Total() int { return r.Added + r.Updated + r.Unchanged }

// AnalysisRun is a persisted category analysis of one building.
type AnalysisRun struct {
	ID          string             `json:"id"`
	Building    string             `json:"building"`
	Tolerance   Tolerance          `json:"tolerance"`
	Rows        []CategoryAnalysis `json:"rows"`
	SkippedRows int                `json:"skipped_rows"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Clone returns a deep copy of the run.
func (r AnalysisRun) Clone() AnalysisRun {
	cp := r
	cp.Rows = make([]CategoryAnalysis, len(r.Rows))
	for i, row := range r.Rows {
		cp.Rows[i] = row
		if row.Deviation.Percent != nil {
			p := *row.Deviation.Percent
			cp.Rows[i].Deviation.Percent = &p
		}
	}
	return cp
}

// Row returns the analysis row of category, compared case-insensitively.
func (r AnalysisRun) Row(category string) (CategoryAnalysis, bool) {
	for _, row := range r.Rows {
		if strings.EqualFold(row.Category, category) {
			return row, true
		}
	}
	return CategoryAnalysis{}, false
}

func cloneAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
