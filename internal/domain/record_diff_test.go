package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestStringifyValue(t *testing.T) {
	if v := StringifyValue(nil); v != nil {
		t.Fatalf("expected nil pointer for nil value")
	}
	if v := StringifyValue(1250.5); v == nil || *v != "1250.5" {
		t.Fatalf("unexpected float rendering: %v", v)
	}
	if v := StringifyValue(1000.0); v == nil || *v != "1000" {
		t.Fatalf("expected trailing zeros dropped: %v", v)
	}
	if v := StringifyValue(true); v == nil || *v != "true" {
		t.Fatalf("unexpected bool rendering: %v", v)
	}
	id := uuid.New()
	if v := StringifyValue(&id); v == nil || *v != id.String() {
		t.Fatalf("unexpected uuid rendering: %v", v)
	}
	var nilID *uuid.UUID
	if v := StringifyValue(nilID); v != nil {
		t.Fatalf("expected nil pointer for nil uuid")
	}
}

func TestDiffScalar(t *testing.T) {
	if _, changed := DiffScalar("salaire", 950.0, 950.0); changed {
		t.Fatalf("equal values must not report a change")
	}
	// Different types with the same rendering compare equal.
	if _, changed := DiffScalar("salaire", "950", 950.0); changed {
		t.Fatalf("same rendering must not report a change")
	}
	change, changed := DiffScalar("salaire", 950.0, 1000.0)
	if !changed || *change.Old != "950" || *change.New != "1000" {
		t.Fatalf("unexpected change: %+v", change)
	}
}

func TestDiffFieldBagsCoversKeyUnion(t *testing.T) {
	prev := FieldBag{"a": 1.0, "b": "x", "removed": true}
	next := FieldBag{"a": 2.0, "b": "x", "added": "y"}

	changes := DiffFieldBags(prev, next)
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes, got %+v", changes)
	}
	// Deterministic key order.
	if changes[0].Key != "a" || changes[1].Key != "added" || changes[2].Key != "removed" {
		t.Fatalf("unexpected order: %+v", changes)
	}
	if changes[1].Old != nil || changes[1].New == nil {
		t.Fatalf("added key must have nil old value: %+v", changes[1])
	}
	if changes[2].Old == nil || changes[2].New != nil {
		t.Fatalf("removed key must have nil new value: %+v", changes[2])
	}
}

func TestShallowMergePreferNew(t *testing.T) {
	prev := FieldBag{"salaire": 950.0, "ville": "Genève"}
	next := FieldBag{"salaire": 1000.0}

	merged := ShallowMergePreferNew(prev, next)
	if merged["salaire"] != 1000.0 {
		t.Fatalf("new value must win: %v", merged["salaire"])
	}
	if merged["ville"] != "Genève" {
		t.Fatalf("absent key must carry over: %v", merged["ville"])
	}
	if len(prev) != 2 || prev["salaire"] != 950.0 {
		t.Fatalf("merge must not mutate inputs: %+v", prev)
	}
}

func TestParseFieldBag(t *testing.T) {
	bag, err := ParseFieldBag([]byte(`{"salaire": 950, "actif": true}`))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if bag["salaire"] != 950.0 || bag["actif"] != true {
		t.Fatalf("unexpected bag: %+v", bag)
	}

	if _, err := ParseFieldBag([]byte(`{broken`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}

	bag, err = ParseFieldBag(nil)
	if err != nil || bag == nil || len(bag) != 0 {
		t.Fatalf("expected empty bag for empty payload, got %v / %v", bag, err)
	}
}
