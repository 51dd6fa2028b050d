package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"sollist/internal/blob"
	"sollist/internal/core"
)

// Prefix is the key prefix every published report lives under.
const Prefix = "reports"

// Publisher stores rendered reports in a blob store. Publishing the same
// run twice replaces the earlier artifacts.
type Publisher struct {
	store blob.Store
}

// NewPublisher returns a publisher writing to store.
func NewPublisher(store blob.Store) *Publisher {
	return &Publisher{store: store}
}

// RunKey returns the blob key of run's report in format.
func RunKey(building, runID string, format Format) string {
	return path.Join(Prefix, keySegment(building), keySegment(runID)+"."+string(format))
}

// DiffKey returns the blob key of a reconciliation report.
func DiffKey(building, id string, format Format) string {
	return path.Join(Prefix, keySegment(building), "diff-"+keySegment(id)+"."+string(format))
}

// PublishRun renders run in every requested format (all formats when none
// are given) and stores the artifacts.
func (p *Publisher) PublishRun(ctx context.Context, run core.AnalysisRun, formats ...Format) ([]blob.Info, error) {
	if run.ID == "" {
		return nil, errors.New("run id required")
	}
	var infos []blob.Info
	for _, f := range pick(formats) {
		art, err := RenderRun(f, run)
		if err != nil {
			return infos, err
		}
		meta := map[string]string{
			"kind":     "analysis",
			"building": run.Building,
			"run_id":   run.ID,
			"rows":     strconv.Itoa(art.Rows),
		}
		info, err := p.put(ctx, RunKey(run.Building, run.ID, f), art, meta)
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PublishDiff stores a reconciliation report identified by id.
func (p *Publisher) PublishDiff(ctx context.Context, building, id string, diff core.DiffResult, formats ...Format) ([]blob.Info, error) {
	if id == "" {
		return nil, errors.New("report id required")
	}
	var infos []blob.Info
	for _, f := range pick(formats) {
		art, err := RenderDiff(f, building, diff)
		if err != nil {
			return infos, err
		}
		meta := map[string]string{
			"kind":      "diff",
			"building":  building,
			"added":     strconv.Itoa(diff.Added),
			"updated":   strconv.Itoa(diff.Updated),
			"unchanged": strconv.Itoa(diff.Unchanged),
			"removed":   strconv.Itoa(len(diff.Removed)),
		}
		info, err := p.put(ctx, DiffKey(building, id, f), art, meta)
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// List returns the reports stored for building, or all reports when
// building is empty.
func (p *Publisher) List(ctx context.Context, building string) ([]blob.Info, error) {
	prefix := Prefix + "/"
	if strings.TrimSpace(building) != "" {
		prefix += keySegment(building) + "/"
	}
	return p.store.List(ctx, prefix)
}

func (p *Publisher) put(ctx context.Context, key string, art Artifact, meta map[string]string) (blob.Info, error) {
	meta["format"] = string(art.Format)
	info, err := p.store.Put(ctx, key, bytes.NewReader(art.Payload), blob.PutOptions{
		ContentType: art.ContentType,
		Metadata:    meta,
		Overwrite:   true,
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store report %s: %w", key, err)
	}
	return info, nil
}

func pick(formats []Format) []Format {
	if len(formats) == 0 {
		return Formats
	}
	return formats
}

// keySegment folds a building or id into one path segment.
func keySegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '-'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
