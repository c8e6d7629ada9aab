// A time-ordered sequence of items carrying a cursor.
//
// The List keeps its items sorted ascending by a caller-supplied timestamp key and maintains a
// cursor c so that after a Seek(t) the invariant
//
//	time(items[c]) <= t < time(items[c+1])
//
// holds, with c == -1 when t lies below the whole sequence (or no valid seek happened yet) and
// c == len-1 when t lies at or above the last item.  Consecutive seeks usually move the target by
// one tick, so Seek walks the cursor stepwise and only falls back to a binary search when the
// target jumped far.
//
// The list is not internally synchronized; it is owned by the replay session.

package timeline

import (
	"errors"
	"math"
	"sort"
)

var InvalidCursorErr = errors.New("cursor does not address a valid element")

// Beyond this many cursor steps in one Seek we give up walking and binary-search instead.
const maxWalk = 32

type List[T any] struct {
	items  []T
	timeOf func(T) float64
	cursor int
	target float64
}

func NewList[T any](timeOf func(T) float64) *List[T] {
	return &List[T]{
		timeOf: timeOf,
		cursor: -1,
		target: math.NaN(),
	}
}

func (l *List[T]) Len() int {
	return len(l.items)
}

func (l *List[T]) Cursor() int {
	return l.cursor
}

// Extend adds items to the sequence and restores sorted order and the cursor invariant.  The sort
// is stable, so items with equal timestamps keep their arrival order.

func (l *List[T]) Extend(items []T) {
	if len(items) == 0 {
		return
	}
	l.items = append(l.items, items...)
	sort.SliceStable(l.items, func(i, j int) bool {
		return l.timeOf(l.items[i]) < l.timeOf(l.items[j])
	})
	if math.IsNaN(l.target) {
		l.cursor = -1
	} else {
		l.binseek(l.target)
	}
}

// Seek positions the cursor for target time t.  A NaN target invalidates the cursor.

func (l *List[T]) Seek(t float64) {
	l.target = t
	if math.IsNaN(t) || len(l.items) == 0 {
		l.cursor = -1
		return
	}
	c := l.cursor
	if c < -1 {
		c = -1
	}
	if c >= len(l.items) {
		c = len(l.items) - 1
	}
	steps := 0
	for c+1 < len(l.items) && l.timeOf(l.items[c+1]) <= t {
		c++
		if steps++; steps > maxWalk {
			l.binseek(t)
			return
		}
	}
	for c >= 0 && l.timeOf(l.items[c]) > t {
		c--
		if steps++; steps > maxWalk {
			l.binseek(t)
			return
		}
	}
	l.cursor = c
}

func (l *List[T]) binseek(t float64) {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.timeOf(l.items[i]) > t
	})
	l.cursor = idx - 1
}

// IsValid reports whether cursor+offset addresses an element of the sequence.  Any offset is
// invalid while the cursor itself is invalid.

func (l *List[T]) IsValid(offset int) bool {
	if l.cursor < 0 {
		return false
	}
	idx := l.cursor + offset
	return idx >= 0 && idx < len(l.items)
}

// At returns the element at cursor+offset, or InvalidCursorErr if that position does not exist.

func (l *List[T]) At(offset int) (T, error) {
	if !l.IsValid(offset) {
		var zero T
		return zero, InvalidCursorErr
	}
	return l.items[l.cursor+offset], nil
}

// TimeOfIndex returns the timestamp at an absolute index, independent of the cursor.

func (l *List[T]) TimeOfIndex(i int) float64 {
	if i < 0 || i >= len(l.items) {
		return math.NaN()
	}
	return l.timeOf(l.items[i])
}

// Time returns the timestamp of the element at cursor+offset, or NaN if invalid.

func (l *List[T]) Time(offset int) float64 {
	if !l.IsValid(offset) {
		return math.NaN()
	}
	return l.timeOf(l.items[l.cursor+offset])
}
