// A replay session: one source, one record store, one playback position.
//
// The session owns the store, the loader, the per-machine snapshot timelines and the process
// tree, and exposes the operations a render loop needs: set the playback time, read the current
// snapshot and memory info, recover from a failed load, follow live data.  All methods are safe
// to call from the render goroutine while a background load runs; nothing here blocks on the
// network.
//
// Time is the driver.  Setting it reseeks every timeline, and if the neighborhood of the new time
// is not yet covered by a remote source, a background load of a window around it is scheduled,
// one at a time.  File-backed sessions have all their data up front and never load in the
// background.

package session

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"replaytop/common"
	"replaytop/loader"
	"replaytop/proctree"
	"replaytop/repr"
	"replaytop/store"
	"replaytop/timeline"
)

const (
	// How far around the playback position data must already be loaded before we leave the
	// network alone.
	preloadHorizon = 120.0

	// Width of a background load window.
	loadWindow = 300.0

	// Snapshots arrive every ~15s; fetch a little past the requested end so the snapshot
	// straddling it is included.
	snapshotBuffer = 30.0

	// The current snapshot is stale when it is older than this relative to the playback
	// position: one collection interval plus a second of slack.
	topsValidGrace = 16.0
)

type Session struct {
	lock      sync.Mutex
	store     *store.Store
	loader    *loader.Loader
	remote    bool
	collapse  bool
	machine   string
	time      float64
	lastGood  float64
	timelines map[string]*timeline.List[*repr.Snapshot]
	seenSnaps map[string]bool
	tree      *proctree.Tree

	// MT: Thread-safe
	loading atomic.Bool
}

func New(st *store.Store, ld *loader.Loader, remote bool, collapseDefault bool) *Session {
	return &Session{
		store:     st,
		loader:    ld,
		remote:    remote,
		collapse:  collapseDefault,
		time:      math.NaN(),
		lastGood:  math.NaN(),
		timelines: make(map[string]*timeline.List[*repr.Snapshot]),
		seenSnaps: make(map[string]bool),
	}
}

func snapshotTime(s *repr.Snapshot) float64 {
	return s.Time
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Data intake.

// Absorb distributes freshly loaded snapshots to their machines' timelines, skipping ids seen in
// earlier loads, and reseeks everything to the current playback position.  Non-snapshot records
// were already merged into the store by the producer.

func (s *Session) Absorb(snaps []*repr.Snapshot) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.absorbLocked(snaps)
}

func (s *Session) absorbLocked(snaps []*repr.Snapshot) {
	byMachine := make(map[string][]*repr.Snapshot)
	for _, snap := range snaps {
		if s.seenSnaps[snap.Id] {
			continue
		}
		s.seenSnaps[snap.Id] = true
		byMachine[snap.Muid] = append(byMachine[snap.Muid], snap)
	}
	for muid, ms := range byMachine {
		tl := s.timelines[muid]
		if tl == nil {
			tl = timeline.NewList(snapshotTime)
			s.timelines[muid] = tl
		}
		tl.Extend(ms)
		tl.Seek(s.time)
	}
	if s.machine == "" {
		s.pickMachineLocked()
	}
}

// IngestLines pushes raw record lines straight into the session, the path used by file sources
// and the live tail.  Coverage is extended by the time range of the batch's snapshots so that
// SetTime does not try to load a window the data already spans.

func (s *Session) IngestLines(lines [][]byte) error {
	batch, err := s.store.Ingest(lines)
	if err != nil {
		return err
	}
	if batch.Dropped > 0 {
		common.Log.Infof("Ingest dropped %d records", batch.Dropped)
	}
	if len(batch.Snapshots) > 0 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, snap := range batch.Snapshots {
			lo = math.Min(lo, snap.Time)
			hi = math.Max(hi, snap.Time)
		}
		s.loader.ExtendCoverage(lo, hi+snapshotBuffer)
	}
	s.store.SetLoaded(true)
	s.Absorb(batch.Snapshots)
	s.lock.Lock()
	s.rebuildTreeLocked()
	s.lock.Unlock()
	return nil
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Playback position.

// SetTime moves the playback position: every timeline reseeks, and for remote sources a
// background load is scheduled when the position's neighborhood is not covered yet.  The render
// loop calls this every tick; it never blocks.

func (s *Session) SetTime(t float64) {
	s.lock.Lock()
	s.time = t
	for _, tl := range s.timelines {
		tl.Seek(t)
	}
	if s.validLocked() {
		s.lastGood = t
	}
	needLoad := s.remote && !math.IsNaN(t) &&
		!(s.loader.IsLoaded(t-preloadHorizon) && s.loader.IsLoaded(t+preloadHorizon))
	s.lock.Unlock()

	if needLoad {
		s.scheduleLoad(t-loadWindow/2, t+loadWindow/2+snapshotBuffer)
	}
}

func (s *Session) Time() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.time
}

// One background load at a time; a tick that wants another window while one is in flight just
// waits for a later tick.

func (s *Session) scheduleLoad(start, end float64) {
	if !s.loading.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.loading.Store(false)
		snaps, err := s.loader.Load(context.Background(), start, end)
		if err != nil {
			common.Log.Infof("Background load of [%v,%v) failed: %v", start, end, err)
			return
		}
		s.Absorb(snaps)
		s.lock.Lock()
		s.rebuildTreeLocked()
		s.lock.Unlock()
	}()
}

// Valid reports whether the session can render: data is loaded, a time is set, and for remote
// sources the time is within loaded coverage.

func (s *Session) Valid() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.validLocked()
}

func (s *Session) validLocked() bool {
	if !s.store.Loaded() || math.IsNaN(s.time) {
		return false
	}
	if !s.remote {
		return true
	}
	return s.loader.IsLoaded(s.time)
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Recovery.

const (
	RecoverRevert = "revert"
	RecoverReload = "reload"
	RecoverRetry  = "retry"
)

// Recover gets the session out of a failed state by the user's chosen method: revert to the last
// position that rendered, jump back to the earliest usable snapshot, or retry the last load.

func (s *Session) Recover(method string) {
	s.loader.ClearFailure()
	switch method {
	case RecoverRevert:
		s.lock.Lock()
		t := s.lastGood
		s.lock.Unlock()
		if !math.IsNaN(t) {
			s.SetTime(t)
		}
	case RecoverReload:
		s.lock.Lock()
		earliest, _ := s.timeRangeLocked()
		s.lock.Unlock()
		if !math.IsNaN(earliest) {
			s.SetTime(earliest)
		}
	case RecoverRetry:
		start, end := s.loader.LastWindow()
		if !math.IsNaN(start) {
			s.scheduleLoad(start, end)
		}
	default:
		common.Log.Infof("Unknown recovery method %q", method)
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Machines and snapshots.

func (s *Session) pickMachineLocked() {
	muids := make([]string, 0, len(s.timelines))
	for muid := range s.timelines {
		muids = append(muids, muid)
	}
	sort.Strings(muids)
	if len(muids) > 0 {
		s.machine = muids[0]
	}
}

func (s *Session) Machine() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.machine
}

func (s *Session) Machines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	muids := make([]string, 0, len(s.timelines))
	for muid := range s.timelines {
		muids = append(muids, muid)
	}
	sort.Strings(muids)
	return muids
}

func (s *Session) SelectMachine(muid string) {
	s.lock.Lock()
	s.machine = muid
	s.rebuildTreeLocked()
	s.lock.Unlock()
}

// CurrentSnapshot returns the snapshot at the playback position for the selected machine, or an
// error when the cursor is invalid there.

func (s *Session) CurrentSnapshot() (*repr.Snapshot, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	tl := s.timelines[s.machine]
	if tl == nil {
		return nil, timeline.InvalidCursorErr
	}
	return tl.At(0)
}

// SnapshotFresh reports whether the current snapshot is close enough to the playback position to
// treat its per-process data as live.

func (s *Session) SnapshotFresh() bool {
	snap, err := s.CurrentSnapshot()
	if err != nil {
		return false
	}
	s.lock.Lock()
	t := s.time
	s.lock.Unlock()
	return t-snap.Time <= topsValidGrace
}

// MemoryInfo walks backward from the playback position to the nearest snapshot carrying memory
// totals; most snapshots do not have them.  Returns nil when none is in range.

func (s *Session) MemoryInfo() map[string]int64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	tl := s.timelines[s.machine]
	if tl == nil {
		return nil
	}
	for offset := 0; tl.IsValid(-offset); offset++ {
		snap, err := tl.At(-offset)
		if err != nil {
			return nil
		}
		if snap.Memory != nil {
			return snap.Memory
		}
	}
	return nil
}

// TimeRange returns the earliest and latest snapshot time across all machines, NaN bounds when
// there are no snapshots.

func (s *Session) TimeRange() (float64, float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.timeRangeLocked()
}

func (s *Session) timeRangeLocked() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, tl := range s.timelines {
		if tl.Len() == 0 {
			continue
		}
		lo = math.Min(lo, tl.TimeOfIndex(0))
		hi = math.Max(hi, tl.TimeOfIndex(tl.Len()-1))
	}
	if math.IsInf(lo, 1) {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Process tree.

func (s *Session) Tree() *proctree.Tree {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tree
}

// RebuildTree recomputes the hierarchy from the store's current process set, filtered to the
// selected machine.

func (s *Session) RebuildTree() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rebuildTreeLocked()
}

func (s *Session) rebuildTreeLocked() {
	var procs []repr.Process
	for _, r := range s.store.Processes() {
		p, err := repr.ParseProcess(r)
		if err != nil {
			common.Log.Infof("Skipping process in tree build: %v", err)
			continue
		}
		if s.machine != "" && p.Muid != "" && p.Muid != s.machine {
			continue
		}
		procs = append(procs, p)
	}
	s.tree = proctree.Build(procs, s.collapse)
}

// SetCollapseDefault flips the default expansion state and rebuilds.

func (s *Session) SetCollapseDefault(collapse bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.collapse != collapse {
		s.collapse = collapse
		s.rebuildTreeLocked()
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Poll surface and reset.

func (s *Session) Loaded() bool {
	return s.store.Loaded()
}

// Count of stored records of a kind, for digests and meters.

func (s *Session) Count(kind repr.Kind) int {
	return s.store.Count(kind)
}

func (s *Session) Progress() float64 {
	return s.loader.Progress()
}

func (s *Session) Failed() (bool, string) {
	return s.loader.Failed()
}

// Clear resets the whole session for a jump to another source.

func (s *Session) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.store.Clear()
	s.loader.Clear()
	s.timelines = make(map[string]*timeline.List[*repr.Snapshot])
	s.seenSnaps = make(map[string]bool)
	s.machine = ""
	s.time = math.NaN()
	s.lastGood = math.NaN()
	s.tree = nil
}
