package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"sollist/internal/textcodec"
)

// ErrEntityNotFound is returned when an operation names an unknown entity.
var ErrEntityNotFound = errors.New("entity not found")

// EnsureBag returns the bag named name linked to entity, creating an empty
// one when absent. created reports whether a new bag was made.
func (d *Document) EnsureBag(entity EntityID, name string) (id BagID, created bool, err error) {
	if _, ok := d.entities[entity]; !ok {
		return 0, false, fmt.Errorf("%w: %d", ErrEntityNotFound, entity)
	}
	if id, _, ok := d.FindBag(entity, name); ok {
		return id, false, nil
	}
	return d.createBag(entity, name, nil), true, nil
}

// CreateBag links a new bag carrying exactly attrs to entity. It fails
// without touching the document when a bag named name is already linked.
func (d *Document) CreateBag(entity EntityID, name string, attrs []Attribute) (BagID, error) {
	if _, ok := d.entities[entity]; !ok {
		return 0, fmt.Errorf("%w: %d", ErrEntityNotFound, entity)
	}
	if id, _, ok := d.FindBag(entity, name); ok {
		return id, fmt.Errorf("bag %q already exists on entity %d", name, entity)
	}
	return d.createBag(entity, name, attrs), nil
}

// UpdateBag replaces the bags named name on entity with one new bag holding
// the old attributes overlaid with attrs. When several bags of that name are
// linked, their attributes are merged in relation order and the first value
// of a name wins. The new relation takes the place of the first old one. Old
// bags are never mutated: other entities sharing them keep seeing the old
// values. When no such bag exists a new one carrying exactly attrs is created.
func (d *Document) UpdateBag(entity EntityID, name string, attrs []Attribute) (BagID, error) {
	e, ok := d.entities[entity]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrEntityNotFound, entity)
	}
	type link struct {
		bag BagID
		rel RelationID
	}
	var old []link
	for _, rid := range e.relations {
		if b, ok := d.bags[d.relations[rid].Bag]; ok && b.Name == name {
			old = append(old, link{bag: b.ID, rel: rid})
		}
	}
	if len(old) == 0 {
		return d.createBag(entity, name, attrs), nil
	}

	// build new
	taken := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		taken[a.Name] = true
	}
	var merged []Attribute
	for _, l := range old {
		for _, a := range d.bags[l.bag].Attributes {
			if taken[a.Name] {
				continue
			}
			taken[a.Name] = true
			merged = append(merged, a)
		}
	}
	merged = append(merged, attrs...)
	newBag := d.addBag(name, merged...)

	// detach old, collect old, attach new in the first old slot
	pos := slices.Index(e.relations, old[0].rel)
	for _, l := range old {
		d.detach(entity, l.rel)
	}
	for _, l := range old {
		d.disposeIfUnreferenced(l.bag)
	}
	rel := d.attach(newBag, entity)
	e.relations = slices.Insert(e.relations[:len(e.relations)-1], pos, rel)
	return newBag, nil
}

// RemoveBags detaches every bag named name from the given entities, or from
// all entities when none are given. Bags left unreferenced are disposed. It
// returns the number of bags disposed, which can be lower than the number of
// detachments when entities shared a bag.
func (d *Document) RemoveBags(name string, entities ...EntityID) int {
	targets := entities
	if len(targets) == 0 {
		targets = sortedKeys(d.entities)
	}
	var candidates []BagID
	for _, eid := range targets {
		e, ok := d.entities[eid]
		if !ok {
			continue
		}
		for _, rid := range slices.Clone(e.relations) {
			rel := d.relations[rid]
			b, ok := d.bags[rel.Bag]
			if !ok || b.Name != name {
				continue
			}
			d.detach(eid, rid)
			if !slices.Contains(candidates, b.ID) {
				candidates = append(candidates, b.ID)
			}
		}
	}
	disposed := 0
	for _, bid := range candidates {
		if d.disposeIfUnreferenced(bid) {
			disposed++
		}
	}
	return disposed
}

// MatchEntity finds the entity whose key equals key case-insensitively. The
// key of an entity is its decoded Name, or its decoded LongName when the
// name is empty. ambiguous reports that more than one entity matched; the
// one created first is returned.
func (d *Document) MatchEntity(key string) (id EntityID, ambiguous, ok bool) {
	for _, eid := range sortedKeys(d.entities) {
		e := d.entities[eid]
		candidate := textcodec.Decode(e.Name)
		if strings.TrimSpace(candidate) == "" {
			candidate = textcodec.Decode(e.LongName)
		}
		if !strings.EqualFold(strings.TrimSpace(candidate), strings.TrimSpace(key)) {
			continue
		}
		if ok {
			return id, true, true
		}
		id, ok = eid, true
	}
	return id, false, ok
}

func (d *Document) createBag(entity EntityID, name string, attrs []Attribute) BagID {
	id := d.addBag(name, attrs...)
	d.attach(id, entity)
	return id
}

func (d *Document) attach(bag BagID, entities ...EntityID) RelationID {
	id := RelationID(d.newID())
	related := make([]EntityID, 0, len(entities))
	for _, e := range entities {
		if !slices.Contains(related, e) {
			related = append(related, e)
		}
	}
	d.relations[id] = &Relation{ID: id, Related: related, Bag: bag}
	for _, e := range related {
		d.entities[e].relations = append(d.entities[e].relations, id)
	}
	return id
}

// detach removes entity from the relation and disposes the relation once it
// relates nothing.
func (d *Document) detach(entity EntityID, rel RelationID) {
	if e, ok := d.entities[entity]; ok {
		e.relations = slices.DeleteFunc(e.relations, func(id RelationID) bool { return id == rel })
	}
	r, ok := d.relations[rel]
	if !ok {
		return
	}
	r.Related = slices.DeleteFunc(r.Related, func(id EntityID) bool { return id == entity })
	if len(r.Related) == 0 {
		delete(d.relations, rel)
	}
}

// disposeIfUnreferenced removes bag when no relation in the document points
// to it. The scan covers every relation, not only those of one entity.
func (d *Document) disposeIfUnreferenced(bag BagID) bool {
	if _, ok := d.bags[bag]; !ok {
		return false
	}
	for _, r := range d.relations {
		if r.Bag == bag {
			return false
		}
	}
	delete(d.bags, bag)
	return true
}
