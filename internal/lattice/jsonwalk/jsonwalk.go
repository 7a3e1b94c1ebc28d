// Package jsonwalk parses JSON text into an order-preserving tree. The
// standard library's map[string]any decoding loses object-key order; both
// the flattener (internal/lattice/flatten) and the schema extractor
// (internal/lattice/schema) need that order to assign stable positions, so
// they share this single token-stream walker instead of each reimplementing
// it.
package jsonwalk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind identifies the shape of a parsed JSON node.
type Kind int

const (
	Object Kind = iota
	Array
	String
	Number
	Bool
	Null
)

// Entry is one key/value pair of an Object node, in source order.
type Entry struct {
	Key   string
	Value *Node
}

// Node is one parsed JSON value.
type Node struct {
	Kind    Kind
	Entries []Entry     // Kind == Object
	Items   []*Node     // Kind == Array
	Str     string      // Kind == String
	Num     json.Number // Kind == Number, exact source text preserved
	Bool    bool        // Kind == Bool
}

// IsInteger reports whether Num parses cleanly as an int64 (no fractional
// part, no exponent) — the "integer" vs "number" split of spec §4.2.
func (n *Node) IsInteger() bool {
	if n.Kind != Number {
		return false
	}
	_, err := n.Num.Int64()
	return err == nil
}

// Parse decodes raw JSON text into an order-preserving tree. It fails with
// an error for empty, whitespace-only, or syntactically invalid input.
func Parse(raw []byte) (*Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty JSON input")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	node, err := parseValue(dec)
	if err != nil {
		return nil, err
	}

	// Reject trailing garbage after the single top-level value.
	if dec.More() {
		return nil, fmt.Errorf("trailing content after JSON value")
	}

	return node, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (*Node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		return &Node{Kind: String, Str: v}, nil
	case json.Number:
		return &Node{Kind: Number, Num: v}, nil
	case bool:
		return &Node{Kind: Bool, Bool: v}, nil
	case nil:
		return &Node{Kind: Null}, nil
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}

func parseObject(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: Object}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %T", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.Entries = append(node.Entries, Entry{Key: key, Value: val})
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func parseArray(dec *json.Decoder) (*Node, error) {
	node := &Node{Kind: Array}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		node.Items = append(node.Items, val)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

// JoinKey joins a parent dot-path with a child property name, per spec
// §4.2: key = parent == "" ? name : parent + "." + name.
func JoinKey(parent, name string) string {
	if parent == "" {
		return name
	}
	var b strings.Builder
	b.Grow(len(parent) + 1 + len(name))
	b.WriteString(parent)
	b.WriteByte('.')
	b.WriteString(name)
	return b.String()
}
