package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sollist/internal/graph"
	"sollist/internal/infra/persistence/memory"
	"sollist/internal/textcodec"
	"sollist/pkg/domain"
)

// Attribute names written to model documents by WriteBack.
const (
	AttrDifference = "Difference"
	AttrWithinPlan = "WithinPlan"
	AttrStatus     = "Status"
	AttrPercentage = "Percentage"
)

// Service orchestrates analysis runs, snapshot reconciliation and write-back
// over a persistent store.
type Service struct {
	store     PersistentStore
	clock     Clock
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	tolerance Tolerance
	newID     func() string
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		clock:     ClockFunc(timeNowUTC),
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		tolerance: domain.DefaultTolerance,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Tolerance returns the configured deviation band.
func (s *Service) Tolerance() Tolerance { return s.tolerance }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Error("operation failed", "operation", op, "error", err, "duration", elapsed)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "duration", elapsed)
	return nil
}

// AnalyzeBuilding compares the planned table of building with its actual
// records, classifies every category and persists the result as a run.
// Record names, categories and attributes pass through the value decoder.
func (s *Service) AnalyzeBuilding(ctx context.Context, building string, planned []PlannedRow, records []ActualRecord) (AnalysisRun, error) {
	var created AnalysisRun
	err := s.run(ctx, "analyze_building", func(ctx context.Context) error {
		building = strings.TrimSpace(building)
		if building == "" {
			return ErrBuildingRequired
		}
		if err := domain.ValidateTolerance(s.tolerance); err != nil {
			return err
		}
		plannedMap, skipped := BuildPlanned(planned)
		if skipped > 0 {
			s.logger.Warn("planned rows skipped", "building", building, "skipped", skipped)
		}
		rows := AnalyzeWithTolerance(plannedMap, Quantities(DecodeRecords(records)), s.tolerance)
		run := AnalysisRun{
			ID:          s.newID(),
			Building:    building,
			Tolerance:   s.tolerance,
			Rows:        rows,
			SkippedRows: skipped,
			CreatedAt:   s.clock.Now(),
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRun(run)
			return err
		})
	})
	if err != nil {
		return AnalysisRun{}, err
	}
	s.logger.Info("analysis stored", "building", created.Building, "run", created.ID, "categories", len(created.Rows))
	return created, nil
}

// ReconcileSnapshot diffs fresh against the stored snapshot of building and
// replaces the snapshot with the merged record set.
func (s *Service) ReconcileSnapshot(ctx context.Context, building string, fresh []ActualRecord) (DiffResult, error) {
	var res DiffResult
	err := s.run(ctx, "reconcile_snapshot", func(ctx context.Context) error {
		building = strings.TrimSpace(building)
		if building == "" {
			return ErrBuildingRequired
		}
		decoded := DecodeRecords(fresh)
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			prior, _ := tx.View().Snapshot(building)
			res = Reconcile(decoded, prior)
			return tx.ReplaceSnapshot(building, SnapshotFromDiff(res))
		})
	})
	if err != nil {
		return DiffResult{}, err
	}
	s.logger.Info("snapshot reconciled", "building", building,
		"added", res.Added, "updated", res.Updated, "unchanged", res.Unchanged, "removed", len(res.Removed))
	return res, nil
}

// WriteBackOptions controls how analysis results are written to a document.
type WriteBackOptions struct {
	// BagName names the attribute bag; required.
	BagName string
	Mode    graph.Mode
}

// WriteBack writes the deviation of each record's category into a bag on
// the matching entity of doc. Records are matched by decoded name; failures
// are returned as warnings in the result.
func (s *Service) WriteBack(ctx context.Context, doc *graph.Document, run AnalysisRun, records []ActualRecord, opts WriteBackOptions) (graph.BatchResult, error) {
	var res graph.BatchResult
	err := s.run(ctx, "write_back", func(context.Context) error {
		if doc == nil {
			return errors.New("write back: nil document")
		}
		if strings.TrimSpace(opts.BagName) == "" {
			return ErrBagNameRequired
		}
		writes, pre := BagWrites(run, DecodeRecords(records), opts.BagName)
		res = graph.NewSynchronizer(doc).Apply(writes, opts.Mode)
		res.Skipped += pre.Skipped
		res.Warnings = append(pre.Warnings, res.Warnings...)
		return nil
	})
	if err != nil {
		return graph.BatchResult{}, err
	}
	for _, w := range res.Warnings {
		s.logger.Warn("write back warning", "key", w.Key, "message", w.Message)
	}
	s.logger.Info("write back finished", "run", run.ID, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

// RemoveBags detaches the bag named bagName from the entities of doc whose
// names match keys, or from every entity when keys is empty. Bags no other
// entity references are disposed.
func (s *Service) RemoveBags(ctx context.Context, doc *graph.Document, bagName string, keys ...string) (graph.BatchResult, error) {
	var res graph.BatchResult
	err := s.run(ctx, "remove_bags", func(context.Context) error {
		if doc == nil {
			return errors.New("remove bags: nil document")
		}
		if strings.TrimSpace(bagName) == "" {
			return ErrBagNameRequired
		}
		decoded := make([]string, len(keys))
		for i, k := range keys {
			decoded[i] = textcodec.Decode(k)
		}
		res = graph.NewSynchronizer(doc).Remove(bagName, decoded...)
		return nil
	})
	if err != nil {
		return graph.BatchResult{}, err
	}
	for _, w := range res.Warnings {
		s.logger.Warn("remove bags warning", "key", w.Key, "message", w.Message)
	}
	s.logger.Info("bags removed", "bag", bagName, "entities", res.Updated, "disposed", res.Removed, "skipped", res.Skipped)
	return res, nil
}

// BagWrites builds one write per record from the analysis row of its
// category. Records whose category is missing from run are reported in the
// returned result instead.
func BagWrites(run AnalysisRun, records []ActualRecord, bagName string) ([]graph.BagWrite, graph.BatchResult) {
	var skipped graph.BatchResult
	writes := make([]graph.BagWrite, 0, len(records))
	for _, rec := range records {
		row, ok := run.Row(strings.TrimSpace(rec.Category))
		if !ok {
			skipped.Skipped++
			skipped.Warnings = append(skipped.Warnings, graph.Warning{
				Key:     rec.Name,
				Message: fmt.Sprintf("category %q not in analysis %s", rec.Category, run.ID),
			})
			continue
		}
		within := "no"
		if row.Deviation.Status == StatusOK {
			within = "yes"
		}
		writes = append(writes, graph.BagWrite{
			Key: rec.Name,
			Bag: bagName,
			Attributes: []graph.Attribute{
				{Name: AttrDifference, Value: graph.Number(row.Deviation.Delta)},
				{Name: AttrWithinPlan, Value: graph.Text(within)},
				{Name: AttrStatus, Value: graph.Text(string(row.Deviation.Status))},
				{Name: AttrPercentage, Value: graph.Number(row.Percentage)},
			},
		})
	}
	return writes, skipped
}

// DecodeRecords returns copies of records with names, categories and
// attribute values passed through the value decoder.
func DecodeRecords(records []ActualRecord) []ActualRecord {
	out := make([]ActualRecord, len(records))
	for i, r := range records {
		out[i] = ActualRecord{
			Category:   textcodec.Decode(r.Category),
			Name:       textcodec.Decode(r.Name),
			Quantity:   r.Quantity,
			Attributes: textcodec.DecodeAll(r.Attributes),
		}
	}
	return out
}

// GetSnapshot returns the last reconciled record set of building.
func (s *Service) GetSnapshot(building string) (Snapshot, error) {
	building = strings.TrimSpace(building)
	if building == "" {
		return nil, ErrBuildingRequired
	}
	snap, ok := s.store.GetSnapshot(building)
	if !ok {
		return nil, domain.ErrNotFound{Entity: EntitySnapshot, ID: building}
	}
	return snap, nil
}

// GetRun returns a stored analysis run.
func (s *Service) GetRun(id string) (AnalysisRun, error) {
	run, ok := s.store.GetRun(id)
	if !ok {
		return AnalysisRun{}, domain.ErrNotFound{Entity: EntityAnalysisRun, ID: id}
	}
	return run, nil
}

// ListRuns returns the runs of building, oldest first.
func (s *Service) ListRuns(building string) []AnalysisRun {
	return s.store.ListRuns(building)
}

// DeleteRun removes a stored analysis run.
func (s *Service) DeleteRun(ctx context.Context, id string) error {
	return s.run(ctx, "delete_run", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteRun(id)
		})
	})
}
