// Tracking of which time ranges have been retrieved already.
//
// A Tracker holds a sorted, strictly increasing list of boundary timestamps interpreted as
// alternating (start, end) pairs of disjoint, non-touching half-open intervals [start, end).
// AddSpan unions a new interval into the list; IsLoaded answers point queries.  Coverage only ever
// grows during a session; a wholesale rollback to an earlier state is possible through Mark and
// Rollback, which the load orchestrator uses to undo an optimistic reservation when a load fails.
//
// The tracker is not internally synchronized.  It is owned by the goroutine that merges load
// results; everybody else asks that owner.

package coverage

import (
	"math"
	"slices"
	"sort"
)

type Span struct {
	Start float64
	End   float64
}

type Tracker struct {
	// Alternating interval bounds; even indices are starts, odd indices are ends.
	times []float64
}

// AddSpan unions [start, end) into the coverage.  Spans may arrive in any order; overlapping,
// subsumed and abutting spans coalesce, so the no-touching invariant holds after every call.  The
// operation is idempotent and a degenerate span is a no-op.

func (tr *Tracker) AddSpan(start, end float64) {
	if end <= start {
		return
	}
	t := tr.times
	n := len(t) / 2

	// Binary-search the range of existing intervals the new span merges with: the first whose end
	// reaches start, through the last whose start does not exceed end.  An interval that merely
	// touches the span counts, which is what coalesces abutting intervals.
	lo := sort.Search(n, func(i int) bool { return t[2*i+1] >= start })
	hi := sort.Search(n, func(i int) bool { return t[2*i] > end })
	if lo < hi {
		start = math.Min(start, t[2*lo])
		end = math.Max(end, t[2*hi-1])
	}

	// Bounds strictly inside [lo,hi) belong to subsumed intervals and are dropped.
	out := make([]float64, 0, len(t)+2-2*(hi-lo))
	out = append(out, t[:2*lo]...)
	out = append(out, start, end)
	out = append(out, t[2*hi:]...)
	tr.times = out
}

// IsLoaded reports whether t falls inside the coverage.  Intervals are half-open, so an interval
// start is loaded and an interval end is not.

func (tr *Tracker) IsLoaded(t float64) bool {
	// Index of the first bound strictly greater than t: odd means t is inside an interval.
	idx := sort.Search(len(tr.times), func(i int) bool {
		return tr.times[i] > t
	})
	return idx%2 == 1
}

// Spans returns the coverage as a list of disjoint intervals in ascending order.

func (tr *Tracker) Spans() []Span {
	spans := make([]Span, 0, len(tr.times)/2)
	for i := 0; i+1 < len(tr.times); i += 2 {
		spans = append(spans, Span{Start: tr.times[i], End: tr.times[i+1]})
	}
	return spans
}

// Bounds returns the number of boundary timestamps, mostly for tests.

func (tr *Tracker) Bounds() int {
	return len(tr.times)
}

// A Mark captures the current coverage so that it can be restored by Rollback.  Marks only make
// sense within one load operation; rolling back to a stale mark discards later reservations.

type Mark struct {
	times []float64
}

func (tr *Tracker) Mark() Mark {
	return Mark{times: slices.Clone(tr.times)}
}

func (tr *Tracker) Rollback(m Mark) {
	tr.times = slices.Clone(m.times)
}
