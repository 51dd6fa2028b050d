package graph

import (
	"bytes"
	"strings"
	"testing"
)

const sampleDocument = `{
  "entities": [
    {"id": 1, "global_id": "2O2Fr$t4X7Zf8NOew3FLOH", "name": "R1", "long_name": "IFCLABEL('B\\X\\FCro')"},
    {"id": 2, "global_id": "1hOSvn6df7F8_7GcBWlRGQ", "name": "R2"}
  ],
  "property_sets": [
    {"id": 10, "name": "Pset_SpaceCommon", "properties": [
      {"name": "Reference", "type": "text", "value": "\\X2\\00C4\\X0\\"},
      {"name": "NetArea", "type": "number", "value": 21.5},
      {"name": "IsExternal", "type": "boolean", "value": false}
    ]},
    {"id": 11, "name": "Stale", "properties": []}
  ],
  "relations": [
    {"id": 20, "related": [1, 2], "property_set": 10},
    {"id": 21, "related": [], "property_set": 11}
  ]
}`

func TestLoadPrunesAndDecodes(t *testing.T) {
	d, err := Load(strings.NewReader(sampleDocument))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if n := len(d.Bags()); n != 1 {
		t.Fatalf("expected stale bag pruned, have %d bags", n)
	}
	attrs, ok := d.Attributes(1, "Pset_SpaceCommon")
	if !ok {
		t.Fatalf("missing property set on entity 1")
	}
	if attrs["Reference"] != "Ä" || attrs["NetArea"] != "21.5" || attrs["IsExternal"] != "false" {
		t.Fatalf("unexpected attributes %#v", attrs)
	}

	// IDs allocated after load must not collide with loaded ones
	id, err := d.UpdateBag(2, "Pset_SpaceCommon", []Attribute{{Name: "NetArea", Value: Number(30)}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if id <= 21 {
		t.Fatalf("expected fresh id above loaded ids, got %d", id)
	}
}

func TestSaveThenLoadKeepsGraph(t *testing.T) {
	d, err := Load(strings.NewReader(sampleDocument))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := d.UpdateBag(1, "Pset_SollIst", []Attribute{{Name: "Difference", Value: Number(-3)}, {Name: "WithinPlan", Value: Text("no")}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, err := Load(&buf)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(again.Bags()) != len(d.Bags()) || len(again.Relations()) != len(d.Relations()) {
		t.Fatalf("graph size changed across save/load")
	}
	attrs, ok := again.Attributes(1, "Pset_SollIst")
	if !ok || attrs["Difference"] != "-3" || attrs["WithinPlan"] != "no" {
		t.Fatalf("unexpected reloaded attributes %#v", attrs)
	}
}

func TestLoadRejectsBrokenReferences(t *testing.T) {
	cases := map[string]string{
		"unknown bag":    `{"entities":[{"id":1}],"property_sets":[],"relations":[{"id":2,"related":[1],"property_set":9}]}`,
		"unknown entity": `{"entities":[],"property_sets":[{"id":1,"name":"X","properties":[]}],"relations":[{"id":2,"related":[5],"property_set":1}]}`,
		"duplicate id":   `{"entities":[{"id":1},{"id":1}]}`,
		"zero id":        `{"entities":[{"id":0}]}`,
		"bad type":       `{"property_sets":[{"id":1,"name":"X","properties":[{"name":"a","type":"date","value":"x"}]}]}`,
		"bad number":     `{"property_sets":[{"id":1,"name":"X","properties":[{"name":"a","type":"number","value":"x"}]}]}`,
		"not json":       `{`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
