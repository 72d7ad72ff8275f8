package testutil

import (
	"testing"
	"time"
)

func TestAssertJSONEqual(t *testing.T) {
	AssertJSONEqual(t, `{"a":1,"b":[true]}`, "{\n  \"b\": [true],\n  \"a\": 1\n}")
}

func TestAssertDurationWithin(t *testing.T) {
	AssertDurationWithin(t, time.Second, 990*time.Millisecond, 10*time.Millisecond)
	AssertDurationWithin(t, time.Second, 1010*time.Millisecond, 10*time.Millisecond)
}

func TestAssertMinSpacing(t *testing.T) {
	base := time.Now()
	stamps := []time.Time{base, base.Add(100 * time.Millisecond), base.Add(198 * time.Millisecond)}
	AssertMinSpacing(t, stamps, 100*time.Millisecond, 5*time.Millisecond)
}
