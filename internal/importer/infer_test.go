package importer

import (
	"testing"
	"time"
)

func TestInferBooleans(t *testing.T) {
	if v := Infer("true"); v != true {
		t.Fatalf("expected true, got %v", v)
	}
	if v := Infer(" FALSE "); v != false {
		t.Fatalf("expected false, got %v", v)
	}
}

func TestInferEmptyLikeValues(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "NULL", "undefined"} {
		if v := Infer(raw); v != nil {
			t.Fatalf("expected nil for %q, got %v", raw, v)
		}
	}
	if v := Infer(nil); v != nil {
		t.Fatalf("expected nil for nil input, got %v", v)
	}
}

func TestInferNumbers(t *testing.T) {
	if v := Infer("42"); v != 42.0 {
		t.Fatalf("expected 42.0, got %v", v)
	}
	if v := Infer("-3.25"); v != -3.25 {
		t.Fatalf("expected -3.25, got %v", v)
	}
	// Native numbers pass through unchanged.
	if v := Infer(7); v != 7 {
		t.Fatalf("expected 7, got %v", v)
	}
	if v := Infer(1250.5); v != 1250.5 {
		t.Fatalf("expected 1250.5, got %v", v)
	}
}

func TestInferDates(t *testing.T) {
	// Day-first reading wins when valid.
	if v := Infer("31/12/2024"); v != "2024-12-31" {
		t.Fatalf("expected 2024-12-31, got %v", v)
	}
	if v := Infer("13/01/2024"); v != "2024-01-13" {
		t.Fatalf("expected 2024-01-13, got %v", v)
	}
	// Month-first fallback when day-first is not a calendar date.
	if v := Infer("01/31/2024"); v != "2024-01-31" {
		t.Fatalf("expected 2024-01-31, got %v", v)
	}
	// ISO input is normalized to itself.
	if v := Infer("2023-06-15"); v != "2023-06-15" {
		t.Fatalf("expected 2023-06-15, got %v", v)
	}
	// Native timestamps collapse to the date.
	ts := time.Date(2023, time.December, 31, 14, 30, 0, 0, time.UTC)
	if v := Infer(ts); v != "2023-12-31" {
		t.Fatalf("expected 2023-12-31, got %v", v)
	}
}

func TestInferIdempotent(t *testing.T) {
	inputs := []any{"hello", "true", "42", "31/12/2024", "", 7, nil}
	for _, raw := range inputs {
		once := Infer(raw)
		twice := Infer(once)
		if once != twice {
			t.Fatalf("inference not idempotent for %v: %v then %v", raw, once, twice)
		}
	}
}

func TestInferFallbackKeepsOriginal(t *testing.T) {
	if v := Infer("32/13/2024"); v != "32/13/2024" {
		t.Fatalf("expected invalid date to stay a string, got %v", v)
	}
	if v := Infer("A-42"); v != "A-42" {
		t.Fatalf("expected plain string passthrough, got %v", v)
	}
}

func TestCleanNumber(t *testing.T) {
	if v := Infer(CleanNumber("1'250.50")); v != 1250.5 {
		t.Fatalf("expected 1250.5, got %v", v)
	}
	if v := CleanNumber("abc"); v != "abc" {
		t.Fatalf("expected passthrough, got %v", v)
	}
}
