package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

type documentFile struct {
	Entities  []entityFile   `json:"entities"`
	Bags      []bagFile      `json:"property_sets"`
	Relations []relationFile `json:"relations"`
}

type entityFile struct {
	ID       uint64 `json:"id"`
	GlobalID string `json:"global_id,omitempty"`
	Name     string `json:"name,omitempty"`
	LongName string `json:"long_name,omitempty"`
}

type bagFile struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Attributes []attributeFile `json:"properties"`
}

type attributeFile struct {
	Name  string          `json:"name"`
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

type relationFile struct {
	ID      uint64   `json:"id"`
	Related []uint64 `json:"related"`
	Bag     uint64   `json:"property_set"`
}

// Load reads a JSON model document. Empty relations and unreferenced bags
// found in the input are pruned so the returned document validates.
func Load(r io.Reader) (*Document, error) {
	var f documentFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	d := NewDocument()
	seen := make(map[uint64]bool)
	claim := func(id uint64) error {
		if id == 0 {
			return fmt.Errorf("object id must be positive")
		}
		if seen[id] {
			return fmt.Errorf("duplicate object id %d", id)
		}
		seen[id] = true
		if id > d.nextID {
			d.nextID = id
		}
		return nil
	}
	for _, e := range f.Entities {
		if err := claim(e.ID); err != nil {
			return nil, err
		}
		id := EntityID(e.ID)
		d.entities[id] = &Entity{ID: id, GlobalID: e.GlobalID, Name: e.Name, LongName: e.LongName}
	}
	for _, b := range f.Bags {
		if err := claim(b.ID); err != nil {
			return nil, err
		}
		attrs := make([]Attribute, 0, len(b.Attributes))
		for _, a := range b.Attributes {
			v, err := decodeValue(a)
			if err != nil {
				return nil, fmt.Errorf("property set %d: %w", b.ID, err)
			}
			attrs = append(attrs, Attribute{Name: a.Name, Value: v})
		}
		id := BagID(b.ID)
		d.bags[id] = &Bag{ID: id, Name: b.Name, Attributes: attrs}
	}
	for _, r := range f.Relations {
		if err := claim(r.ID); err != nil {
			return nil, err
		}
		if _, ok := d.bags[BagID(r.Bag)]; !ok {
			return nil, fmt.Errorf("relation %d references unknown property set %d", r.ID, r.Bag)
		}
		id := RelationID(r.ID)
		rel := &Relation{ID: id, Bag: BagID(r.Bag)}
		for _, eid := range r.Related {
			e, ok := d.entities[EntityID(eid)]
			if !ok {
				return nil, fmt.Errorf("relation %d references unknown entity %d", r.ID, eid)
			}
			if slices.Contains(rel.Related, e.ID) {
				continue
			}
			rel.Related = append(rel.Related, e.ID)
			e.relations = append(e.relations, id)
		}
		d.relations[id] = rel
	}
	d.Prune()
	return d, nil
}

// Save writes the document as indented JSON.
func (d *Document) Save(w io.Writer) error {
	f := documentFile{
		Entities:  make([]entityFile, 0, len(d.entities)),
		Bags:      make([]bagFile, 0, len(d.bags)),
		Relations: make([]relationFile, 0, len(d.relations)),
	}
	for _, id := range sortedKeys(d.entities) {
		e := d.entities[id]
		f.Entities = append(f.Entities, entityFile{ID: uint64(id), GlobalID: e.GlobalID, Name: e.Name, LongName: e.LongName})
	}
	for _, id := range sortedKeys(d.bags) {
		b := d.bags[id]
		bf := bagFile{ID: uint64(id), Name: b.Name, Attributes: make([]attributeFile, 0, len(b.Attributes))}
		for _, a := range b.Attributes {
			af, err := encodeValue(a)
			if err != nil {
				return fmt.Errorf("property set %d: %w", id, err)
			}
			bf.Attributes = append(bf.Attributes, af)
		}
		f.Bags = append(f.Bags, bf)
	}
	for _, id := range sortedKeys(d.relations) {
		r := d.relations[id]
		rf := relationFile{ID: uint64(id), Bag: uint64(r.Bag), Related: make([]uint64, 0, len(r.Related))}
		for _, eid := range r.Related {
			rf.Related = append(rf.Related, uint64(eid))
		}
		f.Relations = append(f.Relations, rf)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

func decodeValue(a attributeFile) (Value, error) {
	switch a.Type {
	case KindNumber:
		var n float64
		if err := json.Unmarshal(a.Value, &n); err != nil {
			return Value{}, fmt.Errorf("property %q: %w", a.Name, err)
		}
		return Number(n), nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(a.Value, &b); err != nil {
			return Value{}, fmt.Errorf("property %q: %w", a.Name, err)
		}
		return Bool(b), nil
	case KindText, "":
		var s string
		if err := json.Unmarshal(a.Value, &s); err != nil {
			return Value{}, fmt.Errorf("property %q: %w", a.Name, err)
		}
		return Text(s), nil
	default:
		return Value{}, fmt.Errorf("property %q: unknown type %q", a.Name, a.Type)
	}
}

func encodeValue(a Attribute) (attributeFile, error) {
	var raw any
	switch a.Value.Kind {
	case KindNumber:
		raw = a.Value.Number
	case KindBool:
		raw = a.Value.Bool
	default:
		raw = a.Value.Text
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return attributeFile{}, fmt.Errorf("property %q: %w", a.Name, err)
	}
	kind := a.Value.Kind
	if kind == "" {
		kind = KindText
	}
	return attributeFile{Name: a.Name, Type: kind, Value: b}, nil
}
