package helperd

import (
	"fmt"
	"testing"
)

func TestLineRingChunkedWrites(t *testing.T) {
	r := newLineRing(10)
	mustWrite(t, r, "hel")
	mustWrite(t, r, "lo\nwor")
	mustWrite(t, r, "ld\n")

	lines := r.Tail(0)
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("lines = %q", lines)
	}
}

func TestLineRingTrimsCarriageReturn(t *testing.T) {
	r := newLineRing(10)
	mustWrite(t, r, "windows line\r\n")
	if lines := r.Tail(0); len(lines) != 1 || lines[0] != "windows line" {
		t.Errorf("lines = %q", lines)
	}
}

func TestLineRingBounded(t *testing.T) {
	r := newLineRing(3)
	for i := range 10 {
		mustWrite(t, r, fmt.Sprintf("line-%d\n", i))
	}
	lines := r.Tail(0)
	if len(lines) != 3 {
		t.Fatalf("len = %d, want 3", len(lines))
	}
	if lines[0] != "line-7" || lines[2] != "line-9" {
		t.Errorf("lines = %q", lines)
	}
}

func TestLineRingTailN(t *testing.T) {
	r := newLineRing(10)
	mustWrite(t, r, "a\nb\nc\n")
	if lines := r.Tail(2); len(lines) != 2 || lines[0] != "b" {
		t.Errorf("Tail(2) = %q", lines)
	}
	if lines := r.Tail(99); len(lines) != 3 {
		t.Errorf("Tail(99) = %q", lines)
	}
}

func TestLineRingReset(t *testing.T) {
	r := newLineRing(10)
	mustWrite(t, r, "old output\npartial")
	r.Reset()
	if lines := r.Tail(0); len(lines) != 0 {
		t.Errorf("lines after reset = %q", lines)
	}
	mustWrite(t, r, "fresh\n")
	if lines := r.Tail(0); len(lines) != 1 || lines[0] != "fresh" {
		t.Errorf("lines = %q", lines)
	}
}

func mustWrite(t *testing.T, r *lineRing, s string) {
	t.Helper()
	if _, err := r.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
}
