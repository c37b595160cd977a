package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	at := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	now := Fixed(at)

	for range 3 {
		if got := now(); !got.Equal(at) {
			t.Errorf("Fixed() = %v, want %v", got, at)
		}
	}
}

func TestTicking(t *testing.T) {
	start := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)
	now := Ticking(start, 104*time.Millisecond)

	first := now()
	second := now()
	third := now()

	if !first.Equal(start) {
		t.Errorf("first = %v, want %v", first, start)
	}
	if got := second.Sub(first); got != 104*time.Millisecond {
		t.Errorf("second - first = %v, want 104ms", got)
	}
	if got := third.Sub(start); got != 208*time.Millisecond {
		t.Errorf("third - start = %v, want 208ms", got)
	}
}

func TestOr(t *testing.T) {
	at := time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC)

	if got := Or(Fixed(at))(); !got.Equal(at) {
		t.Errorf("Or(Fixed) = %v, want %v", got, at)
	}

	before := time.Now()
	got := Or(nil)()
	if got.Before(before) {
		t.Errorf("Or(nil) = %v, want a time after %v", got, before)
	}
}
