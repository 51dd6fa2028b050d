// Package reports renders analysis runs and snapshot diffs as CSV or JSON
// artifacts and publishes them to a blob store.
package reports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"sollist/internal/core"
)

// Format names a rendered artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Formats lists every supported format in publish order.
var Formats = []Format{FormatCSV, FormatJSON}

// ContentType returns the MIME type stored with an artifact of format f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Artifact is a rendered report ready to be stored.
type Artifact struct {
	Format      Format
	ContentType string
	Rows        int
	Payload     []byte
}

var runColumns = []string{"category", "planned", "actual", "percentage", "delta", "deviation_percent", "status"}

var diffColumns = []string{"name", "category", "quantity", "class"}

// number encodes finite values as JSON numbers and anything else as the
// percent placeholder.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return json.Marshal(core.PercentPlaceholder)
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

type runRowJSON struct {
	Category         string      `json:"category"`
	Planned          number      `json:"planned"`
	Actual           number      `json:"actual"`
	Percentage       number      `json:"percentage"`
	Delta            number      `json:"delta"`
	DeviationPercent any         `json:"deviation_percent"`
	Status           core.Status `json:"status"`
}

type runJSON struct {
	ID          string         `json:"id"`
	Building    string         `json:"building"`
	Tolerance   core.Tolerance `json:"tolerance"`
	SkippedRows int            `json:"skipped_rows"`
	CreatedAt   time.Time      `json:"created_at"`
	Rows        []runRowJSON   `json:"rows"`
}

type diffRecordJSON struct {
	Name     string         `json:"name"`
	Category string         `json:"category"`
	Quantity number         `json:"quantity"`
	Class    core.DiffClass `json:"class"`
}

type diffJSON struct {
	Building  string           `json:"building"`
	Added     int              `json:"added"`
	Updated   int              `json:"updated"`
	Unchanged int              `json:"unchanged"`
	Records   []diffRecordJSON `json:"records"`
	Removed   []string         `json:"removed"`
}

// RenderRun encodes run in format.
func RenderRun(format Format, run core.AnalysisRun) (Artifact, error) {
	switch format {
	case FormatJSON:
		doc := runJSON{
			ID:          run.ID,
			Building:    run.Building,
			Tolerance:   run.Tolerance,
			SkippedRows: run.SkippedRows,
			CreatedAt:   run.CreatedAt,
			Rows:        make([]runRowJSON, 0, len(run.Rows)),
		}
		for _, row := range run.Rows {
			doc.Rows = append(doc.Rows, runRowJSON{
				Category:         row.Category,
				Planned:          number(row.PlannedQuantity),
				Actual:           number(row.ActualQuantity),
				Percentage:       number(row.Percentage),
				Delta:            number(row.Deviation.Delta),
				DeviationPercent: deviationPercent(row.Deviation),
				Status:           row.Deviation.Status,
			})
		}
		return encodeJSON(doc, len(run.Rows))
	case FormatCSV:
		records := make([][]string, 0, len(run.Rows))
		for _, row := range run.Rows {
			pct := core.PercentPlaceholder
			if row.Deviation.Percent != nil {
				pct = core.FormatPercent(*row.Deviation.Percent)
			}
			records = append(records, []string{
				row.Category,
				formatNumber(row.PlannedQuantity),
				formatNumber(row.ActualQuantity),
				core.FormatPercent(row.Percentage),
				formatNumber(row.Deviation.Delta),
				pct,
				string(row.Deviation.Status),
			})
		}
		return encodeCSV(runColumns, records)
	default:
		return Artifact{}, fmt.Errorf("unsupported report format %s", format)
	}
}

// RenderDiff encodes a reconciliation result for building in format.
// Removed names are listed after the classified records with class
// "removed" in CSV output.
func RenderDiff(format Format, building string, diff core.DiffResult) (Artifact, error) {
	switch format {
	case FormatJSON:
		doc := diffJSON{
			Building:  building,
			Added:     diff.Added,
			Updated:   diff.Updated,
			Unchanged: diff.Unchanged,
			Records:   make([]diffRecordJSON, 0, len(diff.Records)),
			Removed:   append([]string{}, diff.Removed...),
		}
		for _, rd := range diff.Records {
			doc.Records = append(doc.Records, diffRecordJSON{
				Name:     rd.Record.Name,
				Category: rd.Record.Category,
				Quantity: number(rd.Record.Quantity),
				Class:    rd.Class,
			})
		}
		return encodeJSON(doc, len(diff.Records)+len(diff.Removed))
	case FormatCSV:
		records := make([][]string, 0, len(diff.Records)+len(diff.Removed))
		for _, rd := range diff.Records {
			records = append(records, []string{rd.Record.Name, rd.Record.Category, formatNumber(rd.Record.Quantity), string(rd.Class)})
		}
		for _, name := range diff.Removed {
			records = append(records, []string{name, "", "", "removed"})
		}
		return encodeCSV(diffColumns, records)
	default:
		return Artifact{}, fmt.Errorf("unsupported report format %s", format)
	}
}

func deviationPercent(d core.Deviation) any {
	if d.Percent == nil {
		return core.PercentPlaceholder
	}
	return number(*d.Percent)
}

func formatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return core.PercentPlaceholder
	}
	return core.FormatQuantity(v)
}

func encodeJSON(doc any, rows int) (Artifact, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal json: %w", err)
	}
	return Artifact{Format: FormatJSON, ContentType: FormatJSON.ContentType(), Rows: rows, Payload: payload}, nil
}

func encodeCSV(header []string, records [][]string) (Artifact, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return Artifact{}, err
	}
	if err := w.WriteAll(records); err != nil {
		return Artifact{}, err
	}
	return Artifact{Format: FormatCSV, ContentType: FormatCSV.ContentType(), Rows: len(records), Payload: buf.Bytes()}, nil
}
