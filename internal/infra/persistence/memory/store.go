// Package memory provides an in-memory implementation of the persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sollist/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type (
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
	// AnalysisRun aliases domain.AnalysisRun.
	AnalysisRun = domain.AnalysisRun
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
)

// State is a point-in-time copy of everything the store holds. It is the
// unit exchanged with durable backends.
type State struct {
	Snapshots map[string]Snapshot    `json:"snapshots"`
	Runs      map[string]AnalysisRun `json:"runs"`
}

func newState() State {
	return State{
		Snapshots: make(map[string]Snapshot),
		Runs:      make(map[string]AnalysisRun),
	}
}

func (s State) clone() State {
	out := State{
		Snapshots: make(map[string]Snapshot, len(s.Snapshots)),
		Runs:      make(map[string]AnalysisRun, len(s.Runs)),
	}
	for k, v := range s.Snapshots {
		out.Snapshots[k] = v.Clone()
	}
	for k, v := range s.Runs {
		out.Runs[k] = v.Clone()
	}
	return out
}

// buildingKey folds building names so lookups ignore case and padding.
func buildingKey(building string) string {
	return strings.ToLower(strings.TrimSpace(building))
}

// Store keeps snapshots and analysis runs in memory.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// ExportState returns a deep copy of the current state.
func (s *Store) ExportState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// ImportState replaces the current state with a copy of state. Nil maps are
// normalised and building keys are folded.
func (s *Store) ImportState(state State) {
	next := newState()
	for k, v := range state.Snapshots {
		next.Snapshots[buildingKey(k)] = v.Clone()
	}
	for k, v := range state.Runs {
		next.Runs[k] = v.Clone()
	}
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// RunInTransaction executes fn against a copy of the state and commits the
// copy only when fn succeeds.
func (s *Store) RunInTransaction(_ context.Context, fn func(Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only copy of the state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

// GetSnapshot returns the snapshot stored for building.
func (s *Store) GetSnapshot(building string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.Snapshot(building)
}

// GetRun returns the analysis run with id.
func (s *Store) GetRun(id string) (AnalysisRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindRun(id)
}

// ListRuns returns the runs of building ordered by creation time, or every
// run when building is empty.
func (s *Store) ListRuns(building string) []AnalysisRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListRuns(building)
}

type view struct {
	state *State
}

func (v view) Snapshot(building string) (Snapshot, bool) {
	snap, ok := v.state.Snapshots[buildingKey(building)]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

func (v view) FindRun(id string) (AnalysisRun, bool) {
	run, ok := v.state.Runs[id]
	if !ok {
		return AnalysisRun{}, false
	}
	return run.Clone(), true
}

func (v view) ListRuns(building string) []AnalysisRun {
	key := buildingKey(building)
	out := make([]AnalysisRun, 0, len(v.state.Runs))
	for _, run := range v.state.Runs {
		if key != "" && buildingKey(run.Building) != key {
			continue
		}
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v view) Buildings() []string {
	out := make([]string, 0, len(v.state.Snapshots))
	for k := range v.state.Snapshots {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type transaction struct {
	state State
}

func (tx *transaction) View() TransactionView {
	return view{state: &tx.state}
}

func (tx *transaction) ReplaceSnapshot(building string, snapshot Snapshot) error {
	key := buildingKey(building)
	if key == "" {
		return fmt.Errorf("snapshot building is required")
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	tx.state.Snapshots[key] = snapshot.Clone()
	return nil
}

func (tx *transaction) CreateRun(run AnalysisRun) (AnalysisRun, error) {
	if strings.TrimSpace(run.ID) == "" {
		return AnalysisRun{}, fmt.Errorf("analysis run id is required")
	}
	if strings.TrimSpace(run.Building) == "" {
		return AnalysisRun{}, fmt.Errorf("analysis run building is required")
	}
	if _, exists := tx.state.Runs[run.ID]; exists {
		return AnalysisRun{}, fmt.Errorf("analysis run %q already exists", run.ID)
	}
	tx.state.Runs[run.ID] = run.Clone()
	return run.Clone(), nil
}

func (tx *transaction) DeleteRun(id string) error {
	if _, ok := tx.state.Runs[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityAnalysisRun, ID: id}
	}
	delete(tx.state.Runs, id)
	return nil
}
