package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, expected %v", got, start)
	}

	clock.Advance(5 * time.Second)
	if got := clock.Since(start); got != 5*time.Second {
		t.Errorf("Since() = %v after Advance, expected 5s", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() = %v after Set, expected %v", got, later)
	}
}

func TestSteppingClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := NewSteppingClock(start, time.Second)

	for i := 1; i <= 3; i++ {
		want := start.Add(time.Duration(i) * time.Second)
		if got := clock.Now(); !got.Equal(want) {
			t.Errorf("reading %d: Now() = %v, expected %v", i, got, want)
		}
	}
	if got := clock.Since(start); got != 3*time.Second {
		t.Errorf("Since() = %v, expected 3s without stepping", got)
	}
}
