package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sollist/internal/blob"
	"sollist/internal/core"
	"sollist/internal/graph"
)

// blobScheme marks a reference to a key in the configured blob store
// instead of a local path.
const blobScheme = "blob:"

// readRef returns the contents of a local path, stdin for "-", or a blob
// referenced as blob:<key>.
func (a *app) readRef(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case ref == "-":
		return io.ReadAll(a.stdin)
	case strings.HasPrefix(ref, blobScheme):
		_, rc, err := a.blobs.Get(ctx, strings.TrimPrefix(ref, blobScheme))
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	default:
		return os.ReadFile(ref)
	}
}

func (a *app) writeRef(ctx context.Context, ref string, data []byte, contentType string) error {
	switch {
	case ref == "-":
		_, err := a.stdout.Write(data)
		return err
	case strings.HasPrefix(ref, blobScheme):
		_, err := a.blobs.Put(ctx, strings.TrimPrefix(ref, blobScheme), bytes.NewReader(data), blob.PutOptions{
			ContentType: contentType,
			Overwrite:   true,
		})
		return err
	default:
		if dir := filepath.Dir(ref); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		return os.WriteFile(ref, data, 0o644)
	}
}

// plannedItem keeps the quantity as a YAML node so the raw cell text
// reaches the planned-table parser untouched.
type plannedItem struct {
	Category string    `yaml:"category"`
	Quantity yaml.Node `yaml:"quantity"`
}

// parsePlanned accepts either a list of {category, quantity} items or a
// mapping from category to quantity.
func parsePlanned(data []byte) ([]core.PlannedRow, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse planned table: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	switch root.Kind {
	case yaml.MappingNode:
		rows := make([]core.PlannedRow, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			rows = append(rows, core.PlannedRow{Category: root.Content[i].Value, Quantity: root.Content[i+1].Value})
		}
		return rows, nil
	case yaml.SequenceNode:
		var items []plannedItem
		if err := root.Decode(&items); err != nil {
			return nil, fmt.Errorf("parse planned table: %w", err)
		}
		rows := make([]core.PlannedRow, 0, len(items))
		for _, it := range items {
			rows = append(rows, core.PlannedRow{Category: it.Category, Quantity: it.Quantity.Value})
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("parse planned table: expected a list or mapping")
	}
}

func parseRecords(data []byte) ([]core.ActualRecord, error) {
	var records []core.ActualRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}
	return records, nil
}

func (a *app) loadPlanned(ctx context.Context, ref string) ([]core.PlannedRow, error) {
	data, err := a.readRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read planned table: %w", err)
	}
	return parsePlanned(data)
}

func (a *app) loadRecords(ctx context.Context, ref string) ([]core.ActualRecord, error) {
	data, err := a.readRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return parseRecords(data)
}

func (a *app) loadModel(ctx context.Context, ref string) (*graph.Document, error) {
	data, err := a.readRef(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return graph.Load(bytes.NewReader(data))
}

// saveModel refuses to write a document whose graph is structurally broken.
func (a *app) saveModel(ctx context.Context, ref string, doc *graph.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid model: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	if err := a.writeRef(ctx, ref, buf.Bytes(), "application/json"); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}
