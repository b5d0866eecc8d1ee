package ids

import (
	"testing"
	"time"
)

func TestNewIsUnique(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s == %s", a, b)
	}
	if a.IsNil() || b.IsNil() {
		t.Fatalf("generated ids must not be nil")
	}
}

func TestParseRoundTrip(t *testing.T) {
	a := New()
	parsed, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != a {
		t.Fatalf("round trip mismatch: %s != %s", parsed, a)
	}
}

func TestFixedClockAdvance(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(base)
	if !c.Now().Equal(base) {
		t.Fatalf("expected %v, got %v", base, c.Now())
	}
	c.Advance(5 * time.Second)
	if !c.Now().Equal(base.Add(5 * time.Second)) {
		t.Fatalf("advance did not apply")
	}
}
