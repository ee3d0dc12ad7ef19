package timeutil

import (
	"sync"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	c := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := c.Since(past); d < time.Second {
		t.Errorf("Since() = %v, want >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("frozen clock moved to %v", got)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Advance(5 * time.Minute)
	if got := c.Since(start); got != 5*time.Minute {
		t.Errorf("Since() after Advance = %v, want 5m", got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if got := c.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestMockClock_Stepping(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSteppingMockClock(start, 10*time.Millisecond)

	a := c.Now()
	b := c.Now()
	if d := b.Sub(a); d != 10*time.Millisecond {
		t.Errorf("step = %v, want 10ms", d)
	}
	if d := c.Since(a); d != 20*time.Millisecond {
		t.Errorf("Since() = %v, want 20ms", d)
	}
}

func TestMockClock_Concurrent(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSteppingMockClock(start, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Now()
			}
		}()
	}
	wg.Wait()

	if d := c.Since(start); d != 800*time.Millisecond {
		t.Errorf("Since() = %v, want 800ms", d)
	}
}
