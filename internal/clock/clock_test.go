package clock

import (
	"testing"
	"time"
)

func TestFixed(t *testing.T) {
	t0 := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	c := NewFixed(t0)
	if !c.Now().Equal(t0) {
		t.Fatalf("Now() = %v, want %v", c.Now(), t0)
	}

	c.Advance(90 * time.Minute)
	if want := t0.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", c.Now(), want)
	}

	t1 := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(t1)
	if !c.Now().Equal(t1) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), t1)
	}
}

func TestReal(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	if got.Before(before) {
		t.Errorf("Real.Now() = %v, earlier than %v", got, before)
	}
	if got.Location() != time.UTC {
		t.Errorf("Real.Now() location = %v, want UTC", got.Location())
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2026, 10, 18, 23, 59, 59, 999, loc)
	got := StartOfDay(in)
	want := time.Date(2026, 10, 18, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("StartOfDay = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
}
