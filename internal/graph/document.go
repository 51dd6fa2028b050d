// Package graph models the attribute graph of an external building model:
// entities (spaces), attribute bags (property sets) and the many-to-many
// relations that link them. Objects live in an arena owned by a Document and
// reference each other by ID only.
//
// A Document is not safe for concurrent mutation. Callers serialize access,
// typically one synchronization pass per loaded document.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"sollist/internal/textcodec"
)

// EntityID identifies an entity within one document.
type EntityID uint64

// BagID identifies an attribute bag within one document.
type BagID uint64

// RelationID identifies a relation within one document.
type RelationID uint64

// ValueKind is the type of an attribute value.
type ValueKind string

// Supported attribute value kinds.
const (
	KindNumber ValueKind = "number"
	KindText   ValueKind = "text"
	KindBool   ValueKind = "boolean"
)

// Value is a typed attribute value.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Bool   bool
}

// Number returns a numeric value.
func Number(v float64) Value { return Value{Kind: KindNumber, Number: v} }

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// String renders the value. Text values are decoded.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return textcodec.Decode(v.Text)
	}
}

// Attribute is a named value inside a bag.
type Attribute struct {
	Name  string
	Value Value
}

// Entity is an external object that can carry attribute bags.
type Entity struct {
	ID       EntityID
	GlobalID string
	Name     string
	LongName string

	relations []RelationID
}

// Bag is a named, ordered attribute collection. Two bags may share a name.
type Bag struct {
	ID         BagID
	Name       string
	Attributes []Attribute
}

// Get returns the attribute value stored under name.
func (b Bag) Get(name string) (Value, bool) {
	for _, a := range b.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return Value{}, false
}

// Relation links a set of entities to one defining bag.
type Relation struct {
	ID      RelationID
	Related []EntityID
	Bag     BagID
}

// Document is the arena holding one model's attribute graph.
type Document struct {
	nextID    uint64
	entities  map[EntityID]*Entity
	bags      map[BagID]*Bag
	relations map[RelationID]*Relation
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		entities:  make(map[EntityID]*Entity),
		bags:      make(map[BagID]*Bag),
		relations: make(map[RelationID]*Relation),
	}
}

func (d *Document) newID() uint64 {
	d.nextID++
	return d.nextID
}

// AddEntity registers an entity read from the model and returns its ID.
func (d *Document) AddEntity(globalID, name, longName string) EntityID {
	id := EntityID(d.newID())
	d.entities[id] = &Entity{ID: id, GlobalID: globalID, Name: name, LongName: longName}
	return id
}

// AddBagTo registers a bag and links it to entities through one relation.
func (d *Document) AddBagTo(name string, attrs []Attribute, entities ...EntityID) (BagID, error) {
	if err := d.checkEntities(entities); err != nil {
		return 0, fmt.Errorf("add bag %q: %w", name, err)
	}
	id := d.addBag(name, attrs...)
	d.attach(id, entities...)
	return id, nil
}

func (d *Document) addBag(name string, attrs ...Attribute) BagID {
	id := BagID(d.newID())
	d.bags[id] = &Bag{ID: id, Name: name, Attributes: slices.Clone(attrs)}
	return id
}

func (d *Document) checkEntities(entities []EntityID) error {
	if len(entities) == 0 {
		return errors.New("needs at least one entity")
	}
	for _, e := range entities {
		if _, ok := d.entities[e]; !ok {
			return fmt.Errorf("%w: %d", ErrEntityNotFound, e)
		}
	}
	return nil
}

// Relate links an existing bag to more entities through a new relation.
func (d *Document) Relate(bag BagID, entities ...EntityID) (RelationID, error) {
	if _, ok := d.bags[bag]; !ok {
		return 0, fmt.Errorf("bag %d not found", bag)
	}
	if err := d.checkEntities(entities); err != nil {
		return 0, fmt.Errorf("relate bag %d: %w", bag, err)
	}
	return d.attach(bag, entities...), nil
}

// Entity returns a copy of the entity.
func (d *Document) Entity(id EntityID) (Entity, bool) {
	e, ok := d.entities[id]
	if !ok {
		return Entity{}, false
	}
	cp := *e
	cp.relations = slices.Clone(e.relations)
	return cp, true
}

// Bag returns a copy of the bag.
func (d *Document) Bag(id BagID) (Bag, bool) {
	b, ok := d.bags[id]
	if !ok {
		return Bag{}, false
	}
	return cloneBag(b), true
}

// Relation returns a copy of the relation.
func (d *Document) Relation(id RelationID) (Relation, bool) {
	r, ok := d.relations[id]
	if !ok {
		return Relation{}, false
	}
	return Relation{ID: r.ID, Related: slices.Clone(r.Related), Bag: r.Bag}, true
}

// Entities returns all entities in creation order.
func (d *Document) Entities() []Entity {
	out := make([]Entity, 0, len(d.entities))
	for _, id := range sortedKeys(d.entities) {
		e, _ := d.Entity(id)
		out = append(out, e)
	}
	return out
}

// Bags returns all bags in creation order.
func (d *Document) Bags() []Bag {
	out := make([]Bag, 0, len(d.bags))
	for _, id := range sortedKeys(d.bags) {
		out = append(out, cloneBag(d.bags[id]))
	}
	return out
}

// Relations returns all relations in creation order.
func (d *Document) Relations() []Relation {
	out := make([]Relation, 0, len(d.relations))
	for _, id := range sortedKeys(d.relations) {
		r, _ := d.Relation(id)
		out = append(out, r)
	}
	return out
}

// BagsOf returns the bags linked to entity, in relation order.
func (d *Document) BagsOf(entity EntityID) []Bag {
	e, ok := d.entities[entity]
	if !ok {
		return nil
	}
	out := make([]Bag, 0, len(e.relations))
	for _, rid := range e.relations {
		if b, ok := d.bags[d.relations[rid].Bag]; ok {
			out = append(out, cloneBag(b))
		}
	}
	return out
}

// FindBag returns the first bag named name linked to entity and the
// relation through which it is linked.
func (d *Document) FindBag(entity EntityID, name string) (BagID, RelationID, bool) {
	e, ok := d.entities[entity]
	if !ok {
		return 0, 0, false
	}
	for _, rid := range e.relations {
		rel := d.relations[rid]
		if b, ok := d.bags[rel.Bag]; ok && b.Name == name {
			return b.ID, rid, true
		}
	}
	return 0, 0, false
}

// Attributes returns the rendered attribute values of the bag named name on
// entity. Text values are decoded.
func (d *Document) Attributes(entity EntityID, name string) (map[string]string, bool) {
	bagID, _, ok := d.FindBag(entity, name)
	if !ok {
		return nil, false
	}
	b := d.bags[bagID]
	out := make(map[string]string, len(b.Attributes))
	for _, a := range b.Attributes {
		out[a.Name] = a.Value.String()
	}
	return out, true
}

// Clone returns an independent deep copy of the document. IDs are kept.
func (d *Document) Clone() *Document {
	cp := NewDocument()
	cp.nextID = d.nextID
	for id, e := range d.entities {
		ec := *e
		ec.relations = slices.Clone(e.relations)
		cp.entities[id] = &ec
	}
	for id, b := range d.bags {
		bc := cloneBag(b)
		cp.bags[id] = &bc
	}
	for id, r := range d.relations {
		cp.relations[id] = &Relation{ID: r.ID, Related: slices.Clone(r.Related), Bag: r.Bag}
	}
	return cp
}

// Validate reports the first structural defect found: an orphaned bag, an
// empty relation, or a dangling reference between the indexes.
func (d *Document) Validate() error {
	referenced := make(map[BagID]bool, len(d.bags))
	for _, rid := range sortedKeys(d.relations) {
		rel := d.relations[rid]
		if len(rel.Related) == 0 {
			return fmt.Errorf("relation %d has no related entities", rid)
		}
		if _, ok := d.bags[rel.Bag]; !ok {
			return fmt.Errorf("relation %d references missing bag %d", rid, rel.Bag)
		}
		referenced[rel.Bag] = true
		for _, eid := range rel.Related {
			e, ok := d.entities[eid]
			if !ok {
				return fmt.Errorf("relation %d references missing entity %d", rid, eid)
			}
			if !slices.Contains(e.relations, rid) {
				return fmt.Errorf("entity %d is not indexed on relation %d", eid, rid)
			}
		}
	}
	for _, bid := range sortedKeys(d.bags) {
		if !referenced[bid] {
			return fmt.Errorf("bag %d (%s) is not referenced by any relation", bid, d.bags[bid].Name)
		}
	}
	for _, eid := range sortedKeys(d.entities) {
		for _, rid := range d.entities[eid].relations {
			rel, ok := d.relations[rid]
			if !ok || !slices.Contains(rel.Related, eid) {
				return fmt.Errorf("entity %d indexes relation %d that does not relate it", eid, rid)
			}
		}
	}
	return nil
}

// Prune disposes empty relations and then every bag no relation references.
// It returns the number of relations and bags removed.
func (d *Document) Prune() (relations, bags int) {
	for _, rid := range sortedKeys(d.relations) {
		if len(d.relations[rid].Related) == 0 {
			delete(d.relations, rid)
			relations++
		}
	}
	for _, bid := range sortedKeys(d.bags) {
		if d.disposeIfUnreferenced(bid) {
			bags++
		}
	}
	return relations, bags
}

func cloneBag(b *Bag) Bag {
	return Bag{ID: b.ID, Name: b.Name, Attributes: slices.Clone(b.Attributes)}
}

func sortedKeys[K ~uint64, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
