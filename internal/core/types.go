package core

import "sollist/pkg/domain"

type (
	EntityType       = domain.EntityType
	Status           = domain.Status
	Deviation        = domain.Deviation
	Tolerance        = domain.Tolerance
	PlannedRow       = domain.PlannedRow
	CategoryQuantity = domain.CategoryQuantity
	ActualRecord     = domain.ActualRecord
	CategoryAnalysis = domain.CategoryAnalysis
	Snapshot         = domain.Snapshot
	SnapshotEntry    = domain.SnapshotEntry
	DiffClass        = domain.DiffClass
	RecordDiff       = domain.RecordDiff
	DiffResult       = domain.DiffResult
	AnalysisRun      = domain.AnalysisRun
	PersistentStore  = domain.PersistentStore
	Transaction      = domain.Transaction
	TransactionView  = domain.TransactionView
	ErrNotFound      = domain.ErrNotFound
)

const (
	StatusOK    = domain.StatusOK
	StatusUnder = domain.StatusUnder
	StatusOver  = domain.StatusOver
)

const (
	DiffAdded     = domain.DiffAdded
	DiffUpdated   = domain.DiffUpdated
	DiffUnchanged = domain.DiffUnchanged
)

const (
	EntitySnapshot    = domain.EntitySnapshot
	EntityAnalysisRun = domain.EntityAnalysisRun
)
