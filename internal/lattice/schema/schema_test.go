package schema

import "testing"

func TestExtractOrdersAndTypesElements(t *testing.T) {
	raw := []byte(`{"name":"ada","age":36,"tags":["x","y"],"address":{"city":"london"}}`)
	elements, h, err := Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if h == "" {
		t.Fatal("expected non-empty hash")
	}

	byKey := make(map[string]Element, len(elements))
	for _, e := range elements {
		byKey[e.Key] = e
	}

	if byKey["name"].DataType != "string" {
		t.Errorf("name DataType = %q, want string", byKey["name"].DataType)
	}
	if byKey["age"].DataType != "integer" {
		t.Errorf("age DataType = %q, want integer", byKey["age"].DataType)
	}
	if byKey["tags"].DataType != "array<string>" {
		t.Errorf("tags DataType = %q, want array<string>", byKey["tags"].DataType)
	}
	if byKey["address.city"].DataType != "string" {
		t.Errorf("address.city DataType = %q, want string", byKey["address.city"].DataType)
	}

	for i, e := range elements {
		if e.Position != i {
			t.Errorf("elements[%d].Position = %d, want %d", i, e.Position, i)
		}
	}
}

func TestHashIsOrderIndependent(t *testing.T) {
	a, ha, err := Extract([]byte(`{"a":1,"b":"x"}`))
	if err != nil {
		t.Fatalf("Extract a: %v", err)
	}
	b, hb, err := Extract([]byte(`{"b":"y","a":2}`))
	if err != nil {
		t.Fatalf("Extract b: %v", err)
	}
	if ha != hb {
		t.Errorf("hashes differ for same-shape documents with reordered keys: %q != %q", ha, hb)
	}
	if Hash(a) != Hash(b) {
		t.Error("Hash(a) != Hash(b) for documents of the same shape")
	}
}

func TestHashDiffersForDifferentShapes(t *testing.T) {
	_, ha, err := Extract([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	_, hb, err := Extract([]byte(`{"a":"x"}`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if ha == hb {
		t.Error("expected different hashes for an integer vs a string field")
	}
}

func TestMatchStrictRequiresExactTypes(t *testing.T) {
	a, _, _ := Extract([]byte(`{"a":1}`))
	b, _, _ := Extract([]byte(`{"a":"x"}`))
	if Match(a, b, false) {
		t.Error("strict Match should reject differing data types")
	}
}

func TestMatchFlexibleToleratesNullableMissingField(t *testing.T) {
	a, _, _ := Extract([]byte(`{"a":1,"b":null}`))
	b, _, _ := Extract([]byte(`{"a":1}`))
	if !Match(a, b, true) {
		t.Error("flexible Match should tolerate a nullable field absent from the other side")
	}
}
