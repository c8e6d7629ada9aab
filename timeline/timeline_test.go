package timeline

import (
	"errors"
	"math"
	"testing"
)

type stamped struct {
	at   float64
	name string
}

func newList(times ...float64) *List[stamped] {
	l := NewList(func(s stamped) float64 { return s.at })
	items := make([]stamped, 0, len(times))
	for _, at := range times {
		items = append(items, stamped{at: at})
	}
	l.Extend(items)
	return l
}

func TestSeekInvariant(t *testing.T) {
	l := newList(100, 115, 130, 145)
	cases := []struct {
		target float64
		cursor int
	}{
		{99, -1},
		{100, 0},
		{114.9, 0},
		{115, 1},
		{144, 2},
		{145, 3},
		{1000, 3},
	}
	for _, c := range cases {
		l.Seek(c.target)
		if l.Cursor() != c.cursor {
			t.Errorf("Seek(%v) cursor = %d, want %d", c.target, l.Cursor(), c.cursor)
		}
	}
}

func TestSeekBackAndForth(t *testing.T) {
	l := newList(100, 115, 130, 145)
	l.Seek(130)
	l.Seek(101)
	if l.Cursor() != 0 {
		t.Fatalf("cursor %d after walking back", l.Cursor())
	}
	l.Seek(50)
	if l.Cursor() != -1 {
		t.Fatalf("cursor %d below range", l.Cursor())
	}
	l.Seek(145)
	if l.Cursor() != 3 {
		t.Fatalf("cursor %d after walking forward", l.Cursor())
	}
}

func TestSeekNaNInvalidates(t *testing.T) {
	l := newList(100, 115)
	l.Seek(115)
	l.Seek(math.NaN())
	if l.Cursor() != -1 || l.IsValid(0) {
		t.Fatal("NaN seek should invalidate the cursor")
	}
}

func TestSeekBinaryFallbackEquivalence(t *testing.T) {
	// A jump much longer than the walk threshold must land exactly where stepwise seeking would
	times := make([]float64, 500)
	for i := range times {
		times[i] = float64(1000 + 15*i)
	}
	jump := newList(times...)
	jump.Seek(times[0])
	jump.Seek(times[450] + 1)

	step := newList(times...)
	for i := 0; i <= 450; i++ {
		step.Seek(times[i] + 1)
	}
	if jump.Cursor() != step.Cursor() || jump.Cursor() != 450 {
		t.Fatalf("jump cursor %d, step cursor %d", jump.Cursor(), step.Cursor())
	}
}

func TestExtendReseeks(t *testing.T) {
	l := newList(100, 130)
	l.Seek(120)
	if l.Cursor() != 0 {
		t.Fatalf("cursor %d", l.Cursor())
	}
	// A snapshot arrives between the cursor and the target
	l.Extend([]stamped{{at: 115}, {at: 145}})
	if l.Len() != 4 {
		t.Fatalf("len %d", l.Len())
	}
	if l.Cursor() != 1 {
		t.Fatalf("cursor %d after extend, want 1", l.Cursor())
	}
	if got := l.Time(0); got != 115 {
		t.Fatalf("time at cursor %v", got)
	}
}

func TestExtendStableForEqualTimes(t *testing.T) {
	l := NewList(func(s stamped) float64 { return s.at })
	l.Extend([]stamped{{100, "a"}, {100, "b"}})
	l.Extend([]stamped{{100, "c"}})
	l.Seek(100)
	names := ""
	for off := 0; l.IsValid(-off); off++ {
		s, _ := l.At(-off)
		names = s.name + names
	}
	if names != "abc" {
		t.Fatalf("order %q", names)
	}
}

func TestAtErrors(t *testing.T) {
	l := newList(100, 115)
	if _, err := l.At(0); !errors.Is(err, InvalidCursorErr) {
		t.Fatal("expected invalid cursor before any seek")
	}
	l.Seek(100)
	if _, err := l.At(0); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := l.At(5); !errors.Is(err, InvalidCursorErr) {
		t.Fatal("expected out-of-range error")
	}
	if _, err := l.At(-1); !errors.Is(err, InvalidCursorErr) {
		t.Fatal("expected out-of-range error below zero")
	}
	if !l.IsValid(1) || l.IsValid(2) {
		t.Fatal("IsValid disagrees with At")
	}
}
