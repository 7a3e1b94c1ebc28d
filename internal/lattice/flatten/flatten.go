// Package flatten converts a JSON document into an ordered sequence of
// (key, position?, value, dataType) tuples (spec §4.2, component C).
package flatten

import (
	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/jsonwalk"
)

// Value is one flattened leaf of a JSON document.
type Value struct {
	Key      string
	Position *int // array index, if this leaf sits within an array
	Value    string
	DataType string
}

// Flatten parses raw JSON and returns its flattened leaves in document
// order. It fails with errs.InvalidInput on empty, whitespace-only, or
// malformed JSON.
func Flatten(raw []byte) ([]Value, error) {
	node, err := jsonwalk.Parse(raw)
	if err != nil {
		return nil, errs.New(errs.InvalidInput, "invalid JSON: "+err.Error())
	}

	var out []Value
	walk(node, "", nil, &out)
	return out, nil
}

// walk appends the flattened leaves reachable from node to out. position is
// non-nil when node (or its ancestor array) sits at a fixed array index.
func walk(node *jsonwalk.Node, key string, position *int, out *[]Value) {
	switch node.Kind {
	case jsonwalk.Object:
		for _, entry := range node.Entries {
			walk(entry.Value, jsonwalk.JoinKey(key, entry.Key), position, out)
		}

	case jsonwalk.Array:
		for i, item := range node.Items {
			idx := i
			walk(item, key, &idx, out)
		}

	case jsonwalk.String:
		*out = append(*out, Value{Key: key, Position: position, Value: node.Str, DataType: "string"})

	case jsonwalk.Number:
		dataType := "number"
		if node.IsInteger() {
			dataType = "integer"
		}
		*out = append(*out, Value{Key: key, Position: position, Value: node.Num.String(), DataType: dataType})

	case jsonwalk.Bool:
		v := "false"
		if node.Bool {
			v = "true"
		}
		*out = append(*out, Value{Key: key, Position: position, Value: v, DataType: "boolean"})

	case jsonwalk.Null:
		*out = append(*out, Value{Key: key, Position: position, Value: "null", DataType: "null"})
	}
}
