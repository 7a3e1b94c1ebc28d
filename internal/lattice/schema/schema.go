// Package schema extracts an ordered structural fingerprint from a JSON
// document (spec §4.3, component D) and computes the stable hash used to
// deduplicate schemas across ingested documents.
package schema

import (
	"sort"
	"strings"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/hash"
	"github.com/lattice/lattice/internal/lattice/jsonwalk"
)

// Element is one entry of an extracted schema, before a Schema ID has been
// assigned by the repository.
type Element struct {
	Key      string
	DataType string
	Nullable bool
	Position int
}

// Extract parses raw JSON and returns its schema elements in document order
// plus the stable content hash of the resulting schema.
func Extract(raw []byte) ([]Element, string, error) {
	node, err := jsonwalk.Parse(raw)
	if err != nil {
		return nil, "", errs.New(errs.InvalidInput, "invalid JSON: "+err.Error())
	}

	var elements []Element
	position := 0
	walk(node, "", &position, &elements)

	return elements, Hash(elements), nil
}

func walk(node *jsonwalk.Node, path string, position *int, out *[]Element) {
	switch node.Kind {
	case jsonwalk.Object:
		for _, entry := range node.Entries {
			walk(entry.Value, jsonwalk.JoinKey(path, entry.Key), position, out)
		}

	case jsonwalk.Array:
		dataType := "array"
		var first *jsonwalk.Node
		if len(node.Items) > 0 {
			first = node.Items[0]
			dataType = "array<" + elementTypeName(first) + ">"
		}

		*out = append(*out, Element{Key: path, DataType: dataType, Nullable: true, Position: *position})
		*position++

		if first != nil && first.Kind == jsonwalk.Object {
			walk(first, path, position, out)
		}

	default:
		*out = append(*out, Element{
			Key:      path,
			DataType: scalarType(node),
			Nullable: node.Kind == jsonwalk.Null,
			Position: *position,
		})
		*position++
	}
}

func elementTypeName(node *jsonwalk.Node) string {
	switch node.Kind {
	case jsonwalk.Object:
		return "object"
	case jsonwalk.Array:
		return "array"
	default:
		return scalarType(node)
	}
}

func scalarType(node *jsonwalk.Node) string {
	switch node.Kind {
	case jsonwalk.String:
		return "string"
	case jsonwalk.Number:
		if node.IsInteger() {
			return "integer"
		}
		return "number"
	case jsonwalk.Bool:
		return "boolean"
	default:
		return "null"
	}
}

// Hash computes the stable, order-independent fingerprint of a schema:
// SHA-256 of the ";"-joined, (key,dataType)-sorted "key:dataType" pairs.
// It is invariant under reordering of object properties and independent of
// Nullable (spec §3).
func Hash(elements []Element) string {
	sorted := append([]Element(nil), elements...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].DataType < sorted[j].DataType
	})
	pairs := make([]string, len(sorted))
	for i, e := range sorted {
		pairs[i] = e.Key + ":" + e.DataType
	}
	return hash.SHA256Hex([]byte(strings.Join(pairs, ";")))
}

// Match compares two schemas' elements. In strict mode it requires
// identical multisets of (key,dataType). In flexible mode a key missing
// from one side is tolerated only if the side that has it marks it
// nullable, and integer<->number and null<->anything are compatible pairs
// (spec §4.3).
func Match(a, b []Element, flexible bool) bool {
	if !flexible {
		return sameMultiset(pairSet(a), pairSet(b))
	}

	am := byKey(a)
	bm := byKey(b)

	keys := map[string]struct{}{}
	for k := range am {
		keys[k] = struct{}{}
	}
	for k := range bm {
		keys[k] = struct{}{}
	}

	for k := range keys {
		ea, inA := am[k]
		eb, inB := bm[k]
		switch {
		case inA && inB:
			if !typesCompatible(ea.DataType, eb.DataType) {
				return false
			}
		case inA && !inB:
			if !ea.Nullable {
				return false
			}
		case inB && !inA:
			if !eb.Nullable {
				return false
			}
		}
	}
	return true
}

func typesCompatible(t1, t2 string) bool {
	if t1 == t2 {
		return true
	}
	if t1 == "null" || t2 == "null" {
		return true
	}
	numeric := map[string]bool{"integer": true, "number": true}
	return numeric[t1] && numeric[t2]
}

func byKey(elements []Element) map[string]Element {
	m := make(map[string]Element, len(elements))
	for _, e := range elements {
		m[e.Key] = e
	}
	return m
}

func pairSet(elements []Element) map[string]int {
	m := make(map[string]int, len(elements))
	for _, e := range elements {
		m[e.Key+":"+e.DataType]++
	}
	return m
}

func sameMultiset(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
