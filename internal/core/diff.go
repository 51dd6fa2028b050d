package core

import (
	"math"
	"sort"
	"strings"
)

// QuantityEpsilon is the largest quantity change still treated as unchanged.
const QuantityEpsilon = 0.01

// Reconcile classifies freshly extracted records against the previously
// persisted snapshot. Records are keyed by name, ignoring case; when a name
// occurs more than once the last row wins and is classified once, at the
// position of its first occurrence. Snapshot entries that were not observed
// again are dropped from the merged set and listed in Removed.
func Reconcile(fresh []ActualRecord, snapshot Snapshot) DiffResult {
	order := make([]string, 0, len(fresh))
	latest := make(map[string]ActualRecord, len(fresh))
	for _, r := range fresh {
		key := recordKey(r.Name)
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = r
	}

	index := snapshotIndex(snapshot)
	res := DiffResult{Records: make([]RecordDiff, 0, len(order))}
	for _, key := range order {
		rec := cloneRecord(latest[key])
		class := classifyRecord(rec, index, snapshot)
		switch class {
		case DiffAdded:
			res.Added++
		case DiffUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
		res.Records = append(res.Records, RecordDiff{Record: rec, Class: class})
	}

	for fold, name := range index {
		if _, ok := latest[fold]; !ok {
			res.Removed = append(res.Removed, name)
		}
	}
	sort.Strings(res.Removed)
	return res
}

func classifyRecord(rec ActualRecord, index map[string]string, snapshot Snapshot) DiffClass {
	name, ok := index[recordKey(rec.Name)]
	if !ok {
		return DiffAdded
	}
	prev := snapshot[name]
	if math.Abs(rec.Quantity-prev.Quantity) > QuantityEpsilon {
		return DiffUpdated
	}
	if !strings.EqualFold(strings.TrimSpace(rec.Category), strings.TrimSpace(prev.Category)) {
		return DiffUpdated
	}
	return DiffUnchanged
}

// snapshotIndex maps folded names to snapshot keys. When keys collide after
// folding the lexically smallest key is used.
func snapshotIndex(snapshot Snapshot) map[string]string {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	index := make(map[string]string, len(keys))
	for _, k := range keys {
		fold := recordKey(k)
		if _, ok := index[fold]; !ok {
			index[fold] = k
		}
	}
	return index
}

// SnapshotFromDiff builds the snapshot to persist after a reconciliation.
func SnapshotFromDiff(res DiffResult) Snapshot {
	out := make(Snapshot, len(res.Records))
	for _, rd := range res.Records {
		r := rd.Record
		out[r.Name] = SnapshotEntry{
			Name:       r.Name,
			Category:   r.Category,
			Quantity:   r.Quantity,
			Attributes: cloneStrings(r.Attributes),
		}
	}
	return out
}

func recordKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneRecord(r ActualRecord) ActualRecord {
	cp := r
	cp.Attributes = cloneStrings(r.Attributes)
	return cp
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
