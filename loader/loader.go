// The load orchestrator: turns "I need the window [start,end)" into fetched, parsed, merged data.
//
// A load reserves its window in the coverage tracker up front so that the render loop does not
// schedule the same window again while the load is in flight; the reservation is taken against a
// mark and rolled back if the load fails.  Fetching fans out one task per (source, data kind) pair
// on a bounded pool; for cluster sources the source list is discovered first by asking the backend
// for its machine topology.  Task results funnel back over a channel into the goroutine running
// Load, which is the only writer: it ingests into a scratch store and commits to the real store
// only when every task has succeeded, so a failed load leaves no partial state anywhere.
//
// The first task failure aborts the load, cancels the remaining fetches, and surfaces a single
// human-readable reason through the poll surface.  There is no mid-flight cancellation beyond
// that: a newer load does not stop an older one, and overlapping loads resolve by the store's
// time-based versioning.

package loader

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"replaytop/common"
	"replaytop/coverage"
	"replaytop/repr"
	"replaytop/source"
	"replaytop/store"
)

// Concurrent fetches against one backend.  More buys little: the backend throttles per token, and
// the parse pool downstream is already per-CPU.
const fetchWorkers = 4

type Loader struct {
	store    *store.Store
	src      source.DataSource
	sourceID string
	cluster  bool

	// Guards the tracker and the last-window bookkeeping.
	lock      sync.Mutex
	tracker   coverage.Tracker
	lastStart float64
	lastEnd   float64

	failLock sync.Mutex
	failure  string

	// MT: Thread-safe
	failed   atomic.Bool
	progress atomic.Uint64
}

func New(st *store.Store, src source.DataSource, sourceID string, cluster bool) *Loader {
	return &Loader{
		store:    st,
		src:      src,
		sourceID: sourceID,
		cluster:  cluster,
	}
}

type taskResult struct {
	data []byte
	err  error
}

// Load fetches, parses and merges all data for [start, end).  It blocks until the load is
// complete and is normally run on a background goroutine; the render loop watches Progress,
// Loaded and Failed instead.  On success the deduplicated snapshots of the load are returned for
// the caller's timelines and coverage for the window is committed; on failure the store and the
// coverage are exactly as they were.

func (ld *Loader) Load(ctx context.Context, start, end float64) ([]*repr.Snapshot, error) {
	ld.setProgress(0)
	ld.clearFailure()

	ld.lock.Lock()
	mark := ld.tracker.Mark()
	ld.tracker.AddSpan(start, end)
	ld.lastStart, ld.lastEnd = start, end
	ld.lock.Unlock()

	fail := func(err error) ([]*repr.Snapshot, error) {
		ld.lock.Lock()
		ld.tracker.Rollback(mark)
		ld.lock.Unlock()
		ld.setFailure(err)
		return nil, err
	}

	sources := []string{ld.sourceID}
	if ld.cluster {
		lister, ok := ld.src.(source.TopologyLister)
		if !ok {
			return fail(errors.New("cluster replay needs a source that can list machines"))
		}
		infos, err := lister.ListSources(ctx)
		if err != nil {
			return fail(err)
		}
		if len(infos) > 0 {
			sources = sources[:0]
			for _, si := range infos {
				sources = append(sources, si.UID)
			}
		}
	}

	kinds := source.DataKinds()
	tasks := len(sources) * len(kinds)
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered to task count so that stragglers after an abort never block.
	results := make(chan taskResult, tasks)
	sem := make(chan struct{}, fetchWorkers)
	for _, sourceID := range sources {
		for _, kind := range kinds {
			go func(sourceID, kind string) {
				sem <- struct{}{}
				defer func() { <-sem }()
				data, err := ld.src.Fetch(cctx, sourceID, kind, start, end)
				if errors.Is(err, source.NoMoreDataErr) {
					// The source is exhausted, which is not a failure; there is just
					// nothing further to merge.
					data, err = nil, nil
				}
				results <- taskResult{data, err}
			}(sourceID, kind)
		}
	}

	scratch := store.New()
	var snapshots []*repr.Snapshot
	seen := make(map[string]bool)
	for done := 0; done < tasks; done++ {
		result := <-results
		if result.err != nil {
			cancel()
			return fail(result.err)
		}
		if len(result.data) == 0 {
			ld.setProgress(float64(done+1) / float64(tasks))
			continue
		}
		batch, err := scratch.Ingest(bytes.Split(result.data, []byte{'\n'}))
		if err != nil {
			cancel()
			return fail(err)
		}
		if batch.Dropped > 0 {
			common.Log.Infof("Load dropped %d records", batch.Dropped)
		}
		for _, snap := range batch.Snapshots {
			if !seen[snap.Id] {
				seen[snap.Id] = true
				snapshots = append(snapshots, snap)
			}
		}
		ld.setProgress(float64(done+1) / float64(tasks))
	}

	ld.store.MergeFrom(scratch)
	ld.store.SetLoaded(true)
	ld.setProgress(1)
	return snapshots, nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Coverage.

func (ld *Loader) IsLoaded(t float64) bool {
	ld.lock.Lock()
	defer ld.lock.Unlock()
	return ld.tracker.IsLoaded(t)
}

func (ld *Loader) CoverageSpans() []coverage.Span {
	ld.lock.Lock()
	defer ld.lock.Unlock()
	return ld.tracker.Spans()
}

// ExtendCoverage commits a span directly, used by the live-tail path where data arrives without a
// windowed load.

func (ld *Loader) ExtendCoverage(start, end float64) {
	ld.lock.Lock()
	defer ld.lock.Unlock()
	ld.tracker.AddSpan(start, end)
}

// LastWindow returns the window of the most recent Load, NaN bounds before the first one.

func (ld *Loader) LastWindow() (start, end float64) {
	ld.lock.Lock()
	defer ld.lock.Unlock()
	if ld.lastStart == 0 && ld.lastEnd == 0 {
		return math.NaN(), math.NaN()
	}
	return ld.lastStart, ld.lastEnd
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Poll surface for the render loop.  Never blocks on a load in flight.

func (ld *Loader) Loaded() bool {
	return ld.store.Loaded()
}

func (ld *Loader) Progress() float64 {
	return math.Float64frombits(ld.progress.Load())
}

func (ld *Loader) Failed() (bool, string) {
	if !ld.failed.Load() {
		return false, ""
	}
	ld.failLock.Lock()
	defer ld.failLock.Unlock()
	return true, ld.failure
}

func (ld *Loader) setProgress(p float64) {
	ld.progress.Store(math.Float64bits(p))
}

func (ld *Loader) setFailure(err error) {
	ld.failLock.Lock()
	ld.failure = failureReason(err)
	ld.failLock.Unlock()
	ld.failed.Store(true)
}

func (ld *Loader) clearFailure() {
	ld.failed.Store(false)
	ld.failLock.Lock()
	ld.failure = ""
	ld.failLock.Unlock()
}

// ClearFailure is called when the user has acknowledged a failure and chosen a recovery.

func (ld *Loader) ClearFailure() {
	ld.clearFailure()
}

// The outward-facing reason is one short line; the gory detail was logged where the failure
// happened.

func failureReason(err error) string {
	var te *source.TransportError
	var ae *source.AuthError
	switch {
	case errors.As(err, &ae):
		return ae.Reason
	case errors.As(err, &te):
		return te.Reason
	default:
		return err.Error()
	}
}

// Clear resets coverage and failure state for a session reset.  The store is cleared by the
// session, which owns it.

func (ld *Loader) Clear() {
	ld.lock.Lock()
	ld.tracker = coverage.Tracker{}
	ld.lastStart, ld.lastEnd = 0, 0
	ld.lock.Unlock()
	ld.clearFailure()
	ld.setProgress(0)
}
