package graph

import (
	"fmt"
	"strings"
)

// Mode selects how a Synchronizer writes bags.
type Mode string

const (
	// ModeUpsert replaces existing bags using clone-and-replace.
	ModeUpsert Mode = "upsert"
	// ModeCreate only creates bags; an existing bag is reported as a conflict.
	ModeCreate Mode = "create"
)

// BagWrite asks for a bag named Bag carrying Attributes on the entity
// matching Key.
type BagWrite struct {
	Key        string
	Bag        string
	Attributes []Attribute
}

// Warning describes a write that was skipped or needs attention.
type Warning struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// BatchResult reports the outcome of a batch of writes.
type BatchResult struct {
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Removed  int       `json:"removed,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

func (r *BatchResult) warn(key, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Key: key, Message: fmt.Sprintf(format, args...)})
}

// Synchronizer applies batches of bag writes to one document.
type Synchronizer struct {
	doc *Document
}

// NewSynchronizer returns a synchronizer mutating doc.
func NewSynchronizer(doc *Document) *Synchronizer {
	return &Synchronizer{doc: doc}
}

// Document returns the document being synchronized.
func (s *Synchronizer) Document() *Document { return s.doc }

// Apply performs writes in order. A failing write is counted as skipped and
// recorded as a warning; it never stops the remaining writes.
func (s *Synchronizer) Apply(writes []BagWrite, mode Mode) BatchResult {
	var res BatchResult
	for _, w := range writes {
		if strings.TrimSpace(w.Bag) == "" {
			res.Skipped++
			res.warn(w.Key, "no property set name given")
			continue
		}
		entity, ambiguous, ok := s.doc.MatchEntity(w.Key)
		if !ok {
			res.Skipped++
			res.warn(w.Key, "no space matches %q", w.Key)
			continue
		}
		if ambiguous {
			res.warn(w.Key, "several spaces match %q, writing to the first", w.Key)
		}
		var err error
		switch mode {
		case ModeCreate:
			_, err = s.doc.CreateBag(entity, w.Bag, w.Attributes)
		default:
			_, err = s.doc.UpdateBag(entity, w.Bag, w.Attributes)
		}
		if err != nil {
			res.Skipped++
			res.warn(w.Key, "%v", err)
			continue
		}
		res.Updated++
	}
	return res
}

// Remove detaches the bag named bag from the entities matching keys, or from
// every entity when keys is empty. Unmatched keys are skipped with a warning,
// as are keys selecting an entity an earlier key already selected.
func (s *Synchronizer) Remove(bag string, keys ...string) BatchResult {
	var res BatchResult
	if len(keys) == 0 {
		res.Removed = s.doc.RemoveBags(bag)
		return res
	}
	targets := make([]EntityID, 0, len(keys))
	seen := make(map[EntityID]bool, len(keys))
	for _, key := range keys {
		entity, _, ok := s.doc.MatchEntity(key)
		if !ok {
			res.Skipped++
			res.warn(key, "no space matches %q", key)
			continue
		}
		if seen[entity] {
			res.Skipped++
			res.warn(key, "space already selected by an earlier key")
			continue
		}
		seen[entity] = true
		if _, _, linked := s.doc.FindBag(entity, bag); !linked {
			res.Skipped++
			res.warn(key, "property set %q not present", bag)
			continue
		}
		targets = append(targets, entity)
		res.Updated++
	}
	if len(targets) > 0 {
		res.Removed = s.doc.RemoveBags(bag, targets...)
	}
	return res
}
