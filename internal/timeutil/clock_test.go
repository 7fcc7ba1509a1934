package timeutil

import (
	"testing"
	"time"
)

var (
	_ Clock = RealClock{}
	_ Clock = (*ManualClock)(nil)
)

func TestRealClock(t *testing.T) {
	before := time.Now()
	now := RealClock{}.Now()
	if now.Before(before) {
		t.Errorf("Now() = %v went backwards from %v", now, before)
	}
	if d := (RealClock{}).Since(before.Add(-time.Second)); d < time.Second {
		t.Errorf("Since() = %v, want at least 1s", d)
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if !c.Now().Equal(start) || !c.Now().Equal(start) {
		t.Fatal("clock without a step must not move on its own")
	}
	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}

	c.SetStep(time.Second)
	a, b := c.Now(), c.Now()
	if b.Sub(a) != time.Second {
		t.Errorf("stepped readings %v apart, want 1s", b.Sub(a))
	}
	if got := c.Since(start); got != 92*time.Second {
		t.Errorf("Since() = %v after two stepped reads, want 92s", got)
	}
}

func TestUnixNano(t *testing.T) {
	if ToUnixNano(time.Time{}) != 0 {
		t.Error("zero time must persist as 0")
	}
	if !FromUnixNano(0).IsZero() {
		t.Error("0 must load as the zero time")
	}

	at := time.Date(2026, 7, 9, 8, 30, 0, 123456789, time.FixedZone("CEST", 2*3600))
	back := FromUnixNano(ToUnixNano(at))
	if !back.Equal(at) {
		t.Errorf("round trip %v, want %v", back, at)
	}
	if back.Location() != time.UTC {
		t.Errorf("loaded location %v, want UTC", back.Location())
	}
}
