// The record store: the deduplicated, versioned view of everything ingested in a session.
//
// Records live in per-kind maps keyed by record id.  When two records share an id the one with the
// later effective time wins, independent of arrival order, so overlapping loads and repeat loads
// are harmless.  Snapshot records (event_top_data) are not kept here; they are deduplicated within
// the ingest batch and handed back to the caller, which owns the per-machine timelines.
//
// Line parsing is CPU-bound JSON decoding and is farmed out to a shared pool of parse workers fed
// from a global request channel.  Merging parsed records into the maps happens in the goroutine
// that called Ingest, so there is a single writer per store at any time; the maps themselves are
// lock-protected because the render side reads them while a background load merges.

package store

import (
	"bytes"
	"math"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"replaytop/common"
	"replaytop/repr"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Parse workers.

// Lines per parse request.  Larger chunks amortize channel traffic, smaller chunks parallelize
// short inputs; this is not a sensitive number.
const ingestChunk = 256

// A parseRequest is posted on parseRequests when a chunk of lines needs decoding.  The lines must
// never be nil (a nil chunk means the queue is closed and the worker will exit).

type parseRequest struct {
	lines   [][]byte
	results chan parseResult
}

// A parseResult is *always* returned in response to a request with non-nil lines.  Undecodable
// lines are logged, counted in dropped, and omitted from recs.

type parseResult struct {
	recs    []*repr.Record
	dropped int
}

var (
	// MT: Constant after initialization; thread-safe
	parseRequests = make(chan parseRequest, 100)
)

// Fork off the shared parse workers.  NumCPU is a decent default for pure JSON decoding; the
// workers never touch the store, so there is no lock traffic here.

func init() {
	workers := runtime.NumCPU()
	for i := 0; i < workers; i++ {
		go common.Forever(
			func() {
				for {
					request := <-parseRequests
					if request.lines == nil {
						return
					}
					var result parseResult
					for _, line := range request.lines {
						rec, err := repr.ParseRecord(line)
						if err != nil {
							common.Log.Infof("Dropping record: %v", err)
							result.dropped++
							continue
						}
						result.recs = append(result.recs, rec)
					}
					request.results <- result
				}
			},
			os.Stderr,
		)
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// The store.

type Store struct {
	lock    sync.RWMutex
	records map[repr.Kind]map[string]*repr.Record

	// MT: Thread-safe
	loaded   atomic.Bool
	progress atomic.Uint64
}

func New() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	records := make(map[repr.Kind]map[string]*repr.Record)
	for _, kind := range repr.StoredKinds() {
		records[kind] = make(map[string]*repr.Record)
	}
	s.lock.Lock()
	s.records = records
	s.lock.Unlock()
	s.loaded.Store(false)
	s.setProgress(0)
}

// Clear wipes the store for a session reset.  In-flight loads that complete afterward will merge
// into the fresh maps, which is benign.

func (s *Store) Clear() {
	s.reset()
}

// A Batch is the per-Ingest output that does not land in the maps: the deduplicated snapshots for
// the timelines, plus counts for diagnostics.
type Batch struct {
	Snapshots []*repr.Snapshot
	Ingested  int
	Dropped   int
}

// Ingest parses the given newline-split record lines and merges them into the store.  Blank lines
// are ignored.  Undecodable or unknown-kind lines are logged and counted on the batch, never
// fatal.  Only one Ingest may run against a store at a time; concurrent loads each stage into
// their own scratch store and MergeFrom the result.

func (s *Store) Ingest(lines [][]byte) (*Batch, error) {
	live := make([][]byte, 0, len(lines))
	for _, line := range lines {
		if len(bytes.TrimSpace(line)) > 0 {
			live = append(live, line)
		}
	}
	s.setProgress(0)
	batch := &Batch{}
	if len(live) == 0 {
		s.setProgress(1)
		return batch, nil
	}

	chunks := (len(live) + ingestChunk - 1) / ingestChunk
	results := make(chan parseResult, chunks)
	go func() {
		for i := 0; i < len(live); i += ingestChunk {
			end := min(i+ingestChunk, len(live))
			parseRequests <- parseRequest{lines: live[i:end], results: results}
		}
	}()

	seenSnapshots := make(map[string]int)
	for done := 0; done < chunks; done++ {
		result := <-results
		batch.Dropped += result.dropped
		s.merge(result.recs, batch, seenSnapshots)
		s.setProgress(float64(done+1) / float64(chunks))
	}
	return batch, nil
}

func (s *Store) merge(recs []*repr.Record, batch *Batch, seenSnapshots map[string]int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, r := range recs {
		switch r.Kind {
		case repr.KindUnknown:
			common.Log.Infof("Dropping record %s: unknown schema %s", r.Id, r.Schema)
			batch.Dropped++
		case repr.KindSnapshot:
			snap, err := repr.ParseSnapshot(r)
			if err != nil {
				common.Log.Infof("Dropping snapshot: %v", err)
				batch.Dropped++
				continue
			}
			if idx, found := seenSnapshots[r.Id]; found {
				if snap.Time > batch.Snapshots[idx].Time {
					batch.Snapshots[idx] = snap
				}
				continue
			}
			seenSnapshots[r.Id] = len(batch.Snapshots)
			batch.Snapshots = append(batch.Snapshots, snap)
			batch.Ingested++
		default:
			m := s.records[r.Kind]
			old := m[r.Id]
			if old == nil || r.EffectiveTime() > old.EffectiveTime() {
				m[r.Id] = r
			}
			batch.Ingested++
		}
	}
}

// MergeFrom unions the other store's records into this one under the same versioning rule.  The
// loader stages each load into a scratch store and commits it here only when every task of the
// load has succeeded, so a failed load leaves this store untouched.

func (s *Store) MergeFrom(other *Store) {
	other.lock.RLock()
	defer other.lock.RUnlock()
	s.lock.Lock()
	defer s.lock.Unlock()
	for kind, src := range other.records {
		dst := s.records[kind]
		for id, r := range src {
			old := dst[id]
			if old == nil || r.EffectiveTime() > old.EffectiveTime() {
				dst[id] = r
			}
		}
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Poll surface.

func (s *Store) Loaded() bool {
	return s.loaded.Load()
}

func (s *Store) SetLoaded(loaded bool) {
	s.loaded.Store(loaded)
}

// Progress of the current ingest batch in [0,1], monotone within a batch.  Safe to poll from the
// render loop.

func (s *Store) Progress() float64 {
	return math.Float64frombits(s.progress.Load())
}

func (s *Store) setProgress(p float64) {
	s.progress.Store(math.Float64bits(p))
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Read accessors.  The returned maps are copies and safe to retain; the records they point to are
// shared and read-only.

func (s *Store) OfKind(kind repr.Kind) map[string]*repr.Record {
	s.lock.RLock()
	defer s.lock.RUnlock()
	src := s.records[kind]
	m := make(map[string]*repr.Record, len(src))
	for id, r := range src {
		m[id] = r
	}
	return m
}

func (s *Store) Processes() map[string]*repr.Record {
	return s.OfKind(repr.KindProcess)
}

func (s *Store) Machines() map[string]*repr.Record {
	return s.OfKind(repr.KindMachine)
}

func (s *Store) Sessions() map[string]*repr.Record {
	return s.OfKind(repr.KindSession)
}

func (s *Store) Connections() map[string]*repr.Record {
	return s.OfKind(repr.KindConnection)
}

func (s *Store) ListeningSockets() map[string]*repr.Record {
	return s.OfKind(repr.KindListeningSocket)
}

func (s *Store) Containers() map[string]*repr.Record {
	return s.OfKind(repr.KindContainer)
}

func (s *Store) Flags() map[string]*repr.Record {
	return s.OfKind(repr.KindRedFlag)
}

func (s *Store) Clusters() map[string]*repr.Record {
	return s.OfKind(repr.KindCluster)
}

func (s *Store) Nodes() map[string]*repr.Record {
	return s.OfKind(repr.KindNode)
}

func (s *Store) Get(kind repr.Kind, id string) (*repr.Record, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	r, found := s.records[kind][id]
	return r, found
}

func (s *Store) Count(kind repr.Kind) int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.records[kind])
}

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// Export.

// A Sink receives exported record lines; see the sink package for implementations.

type Sink interface {
	Write(lines [][]byte) error
}

// Export writes every stored record to the sink in a deterministic order (kind, then id), one raw
// line per record.  Re-ingesting an export reproduces an identical store.

func (s *Store) Export(sk Sink) error {
	s.lock.RLock()
	var lines [][]byte
	for _, kind := range repr.StoredKinds() {
		m := s.records[kind]
		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			lines = append(lines, m[id].Raw)
		}
	}
	s.lock.RUnlock()
	return sk.Write(lines)
}
