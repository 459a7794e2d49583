package clock

import (
	"testing"
	"time"
)

func TestReal(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := Fixed{T: at}
	if !c.Now().Equal(at) {
		t.Errorf("Fixed.Now() = %v, want %v", c.Now(), at)
	}
	if !c.Now().Equal(c.Now()) {
		t.Error("Fixed.Now() drifted between calls")
	}
}

func TestStepped(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewStepped(start)

	if !c.Now().Equal(start) {
		t.Errorf("initial = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("after advance = %v, want %v", c.Now(), want)
	}

	jump := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	c.Set(jump)
	if !c.Now().Equal(jump) {
		t.Errorf("after set = %v, want %v", c.Now(), jump)
	}
}
