package tsid

import (
	"sort"
	"testing"
	"time"
)

func TestGenerateUniqueAndOrdered(t *testing.T) {
	const n = 1000
	ids := make([]string, n)
	seen := make(map[string]bool, n)
	for i := range ids {
		id := Generate()
		if len(id) != encodedLen {
			t.Fatalf("expected %d characters, got %d: %s", encodedLen, len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		ids[i] = id
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("expected generation order to match lexicographic order")
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	id := Generate()
	after := time.Now()

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(after.Add(time.Second)) {
		t.Errorf("timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestDecodeAliases(t *testing.T) {
	id := Generate()
	if !IsValid(id) {
		t.Fatalf("generated id %s did not validate", id)
	}

	lower := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	if !IsValid(string(lower)) {
		t.Errorf("expected lowercase form %s to validate", lower)
	}
}

func TestInvalidIdentifiers(t *testing.T) {
	for _, s := range []string{"", "short", "0123456789ABCDEF", "!!!!!!!!!!!!!"} {
		if IsValid(s) {
			t.Errorf("expected %q to be invalid", s)
		}
		if _, err := Timestamp(s); err == nil {
			t.Errorf("expected Timestamp(%q) to fail", s)
		}
	}
}
