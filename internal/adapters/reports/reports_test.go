package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"sollist/internal/blob"
	"sollist/internal/core"
)

func sampleRun() core.AnalysisRun {
	planned := map[string]float64{"Office": 12.5, "Lab": 0}
	rows := core.AnalyzeWithTolerance(planned, []core.CategoryQuantity{
		{Category: "office", Quantity: 10},
		{Category: "Lab", Quantity: 2},
	}, core.Tolerance{MinPct: -10, MaxPct: 10})
	return core.AnalysisRun{
		ID:        "run-1",
		Building:  "Haus A",
		Tolerance: core.Tolerance{MinPct: -10, MaxPct: 10},
		Rows:      rows,
		CreatedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}

func readCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return records
}

func TestRenderRunCSV(t *testing.T) {
	art, err := RenderRun(FormatCSV, sampleRun())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if art.ContentType != "text/csv" || art.Rows != 2 {
		t.Fatalf("unexpected artifact %+v", art)
	}
	records := readCSV(t, art.Payload)
	if len(records) != 3 || strings.Join(records[0], ",") != strings.Join(runColumns, ",") {
		t.Fatalf("unexpected header or size %v", records)
	}
	byCategory := map[string][]string{}
	for _, r := range records[1:] {
		byCategory[r[0]] = r
	}
	lab := byCategory["Lab"]
	if lab == nil || lab[3] != "100.00" || lab[5] != core.PercentPlaceholder || lab[6] != string(core.StatusOver) {
		t.Fatalf("unexpected lab row %v", lab)
	}
	office := byCategory["Office"]
	if office == nil || office[1] != "12.5" || office[2] != "10" || office[3] != "80.00" || office[4] != "-2.5" || office[6] != string(core.StatusUnder) {
		t.Fatalf("unexpected office row %v", office)
	}
}

func TestRenderRunJSONUsesPlaceholder(t *testing.T) {
	run := sampleRun()
	run.Rows = append(run.Rows, core.CategoryAnalysis{Category: "Broken", PlannedQuantity: math.NaN(), Deviation: core.Deviation{Status: core.StatusOK}})
	art, err := RenderRun(FormatJSON, run)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var doc struct {
		ID   string           `json:"id"`
		Rows []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(art.Payload, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID != "run-1" || len(doc.Rows) != 3 {
		t.Fatalf("unexpected document %+v", doc)
	}
	for _, row := range doc.Rows {
		switch row["category"] {
		case "Broken":
			if row["planned"] != core.PercentPlaceholder {
				t.Fatalf("expected placeholder for NaN, got %v", row["planned"])
			}
		case "Lab":
			if row["deviation_percent"] != core.PercentPlaceholder {
				t.Fatalf("expected placeholder for undefined percent, got %v", row["deviation_percent"])
			}
		case "Office":
			if v, ok := row["deviation_percent"].(float64); !ok || math.Abs(v+20) > 1e-9 {
				t.Fatalf("unexpected office percent %v", row["deviation_percent"])
			}
		}
	}
}

func TestRenderDiff(t *testing.T) {
	diff := core.Reconcile(
		[]core.ActualRecord{{Name: "R1", Category: "Office", Quantity: 12}, {Name: "R3", Category: "Lab", Quantity: 4}},
		core.Snapshot{"R1": {Name: "R1", Category: "Office", Quantity: 10}, "R2": {Name: "R2", Category: "Lab", Quantity: 3}},
	)
	art, err := RenderDiff(FormatCSV, "Haus A", diff)
	if err != nil {
		t.Fatalf("render csv: %v", err)
	}
	records := readCSV(t, art.Payload)
	if len(records) != 4 {
		t.Fatalf("expected header, two records and one removal, got %v", records)
	}
	last := records[len(records)-1]
	if last[0] != "R2" || last[3] != "removed" {
		t.Fatalf("unexpected removal row %v", last)
	}

	art, err = RenderDiff(FormatJSON, "Haus A", diff)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var doc diffJSONShape
	if err := json.Unmarshal(art.Payload, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Added != 1 || doc.Updated != 1 || doc.Unchanged != 0 || len(doc.Removed) != 1 {
		t.Fatalf("unexpected counts %+v", doc)
	}
}

type diffJSONShape struct {
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Removed   []string `json:"removed"`
}

func TestRenderUnknownFormat(t *testing.T) {
	if _, err := RenderRun("xlsx", sampleRun()); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := RenderDiff("xlsx", "b", core.DiffResult{}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestPublishRunStoresArtifacts(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	p := NewPublisher(store)

	infos, err := p.PublishRun(ctx, sampleRun())
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected csv and json, got %d", len(infos))
	}
	if infos[0].Key != "reports/haus-a/run-1.csv" || infos[1].Key != "reports/haus-a/run-1.json" {
		t.Fatalf("unexpected keys %s %s", infos[0].Key, infos[1].Key)
	}
	if infos[1].ContentType != "application/json" || infos[1].Metadata["rows"] != "2" || infos[1].Metadata["run_id"] != "run-1" {
		t.Fatalf("unexpected info %+v", infos[1])
	}

	// republishing replaces the artifacts
	if _, err := p.PublishRun(ctx, sampleRun(), FormatCSV); err != nil {
		t.Fatalf("republish: %v", err)
	}
	_, rc, err := store.Get(ctx, RunKey("Haus A", "run-1", FormatCSV))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if !strings.HasPrefix(string(body), "category,planned") {
		t.Fatalf("unexpected body %q", body)
	}

	listed, err := p.List(ctx, "haus a")
	if err != nil || len(listed) != 2 {
		t.Fatalf("list: %v %d", err, len(listed))
	}
}

func TestPublishDiff(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher(blob.NewMemory())
	diff := core.DiffResult{Added: 1, Records: []core.RecordDiff{{Record: core.ActualRecord{Name: "R1", Category: "Office", Quantity: 1}, Class: core.DiffAdded}}}
	infos, err := p.PublishDiff(ctx, "B/1", "abc", diff, FormatJSON)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "reports/b-1/diff-abc.json" || infos[0].Metadata["added"] != "1" {
		t.Fatalf("unexpected infos %+v", infos)
	}
	if _, err := p.PublishDiff(ctx, "B", "", diff); err == nil {
		t.Fatalf("expected id required error")
	}
	if _, err := p.PublishRun(ctx, core.AnalysisRun{}); err == nil {
		t.Fatalf("expected run id required error")
	}
}

type failingStore struct{ blob.Store }

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("disk full")
}

func TestPublishPropagatesStoreErrors(t *testing.T) {
	p := NewPublisher(failingStore{blob.NewMemory()})
	if _, err := p.PublishRun(context.Background(), sampleRun()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestKeySegment(t *testing.T) {
	cases := map[string]string{
		"":        "_",
		"..":      "_",
		" Haus ":  "haus",
		`a\b/c d`: "a-b-c-d",
	}
	for in, want := range cases {
		if got := keySegment(in); got != want {
			t.Fatalf("keySegment(%q)=%q want %q", in, got, want)
		}
	}
}
