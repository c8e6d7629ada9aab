package store

import (
	"fmt"
	"testing"

	"replaytop/repr"
)

func procLine(id string, time float64, pid int) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"%s","schema":"model_process:1.1.0","time":%v,"muid":"m1","pid":%d}`, id, time, pid))
}

func snapLine(id string, time float64) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"%s","schema":"event_top_data:1.0.0","time":%v,"muid":"m1","processes":{}}`, id, time))
}

func mustIngest(t *testing.T, s *Store, lines [][]byte) *Batch {
	t.Helper()
	batch, err := s.Ingest(lines)
	if err != nil {
		t.Fatal(err)
	}
	return batch
}

func TestIngestBasic(t *testing.T) {
	s := New()
	batch := mustIngest(t, s, [][]byte{
		procLine("p:1", 100, 1),
		[]byte("  "),
		nil,
		procLine("p:2", 100, 42),
		snapLine("t:1", 100),
	})
	if batch.Ingested != 3 || batch.Dropped != 0 {
		t.Fatalf("ingested %d dropped %d", batch.Ingested, batch.Dropped)
	}
	if s.Count(repr.KindProcess) != 2 {
		t.Fatalf("process count %d", s.Count(repr.KindProcess))
	}
	if len(batch.Snapshots) != 1 || batch.Snapshots[0].Id != "t:1" {
		t.Fatalf("bad staged snapshots %v", batch.Snapshots)
	}
	if s.Progress() != 1 {
		t.Fatalf("progress %v", s.Progress())
	}
}

func TestIngestDedupBothOrders(t *testing.T) {
	older := []byte(`{"id":"p:1","schema":"model_process:1.1.0","time":100,"muid":"m1","pid":1,"gen":"old"}`)
	newer := []byte(`{"id":"p:1","schema":"model_process:1.1.0","time":200,"muid":"m1","pid":1,"gen":"new"}`)

	for _, lines := range [][][]byte{{older, newer}, {newer, older}} {
		s := New()
		mustIngest(t, s, lines)
		if s.Count(repr.KindProcess) != 1 {
			t.Fatalf("count %d", s.Count(repr.KindProcess))
		}
		r, _ := s.Get(repr.KindProcess, "p:1")
		if r.EffectiveTime() != 200 {
			t.Fatalf("wrong survivor, time %v", r.EffectiveTime())
		}
	}
}

func TestIngestIntervalKindVersioning(t *testing.T) {
	// Interval-lived kinds have no embedded time; valid_from versions them
	a := []byte(`{"id":"c:1","schema":"model_connection:1.0.0","valid_from":50,"valid_to":60,"muid":"m1"}`)
	b := []byte(`{"id":"c:1","schema":"model_connection:1.0.0","valid_from":70,"muid":"m1"}`)
	s := New()
	mustIngest(t, s, [][]byte{b, a})
	r, _ := s.Get(repr.KindConnection, "c:1")
	if r.ValidFrom != 70 {
		t.Fatalf("wrong survivor, valid_from %v", r.ValidFrom)
	}
}

func TestIngestDropsBadAndUnknown(t *testing.T) {
	s := New()
	batch := mustIngest(t, s, [][]byte{
		[]byte(`{broken`),
		[]byte(`{"id":"x:1","schema":"model_flux_capacitor:9.9","time":1}`),
		procLine("p:1", 100, 1),
	})
	if batch.Dropped != 2 || batch.Ingested != 1 {
		t.Fatalf("ingested %d dropped %d", batch.Ingested, batch.Dropped)
	}
	if s.Count(repr.KindProcess) != 1 {
		t.Fatal("good line should survive bad neighbors")
	}
}

func TestIngestSnapshotBatchDedup(t *testing.T) {
	s := New()
	batch := mustIngest(t, s, [][]byte{
		snapLine("t:1", 100),
		snapLine("t:1", 100),
		snapLine("t:2", 115),
	})
	if len(batch.Snapshots) != 2 {
		t.Fatalf("snapshot dedup failed, got %d", len(batch.Snapshots))
	}
}

func TestIngestLargeBatchSpansChunks(t *testing.T) {
	// More lines than one parse chunk, exercising the worker fan-out
	var lines [][]byte
	n := ingestChunk*3 + 17
	for i := 0; i < n; i++ {
		lines = append(lines, procLine(fmt.Sprintf("p:%d", i), 100, i+1))
	}
	s := New()
	batch := mustIngest(t, s, lines)
	if batch.Ingested != n || s.Count(repr.KindProcess) != n {
		t.Fatalf("ingested %d stored %d want %d", batch.Ingested, s.Count(repr.KindProcess), n)
	}
}

func TestMergeFromStagesCleanly(t *testing.T) {
	main := New()
	mustIngest(t, main, [][]byte{procLine("p:1", 100, 1)})

	scratch := New()
	mustIngest(t, scratch, [][]byte{procLine("p:1", 200, 1), procLine("p:2", 100, 2)})

	// Nothing in main changed yet
	r, _ := main.Get(repr.KindProcess, "p:1")
	if r.EffectiveTime() != 100 || main.Count(repr.KindProcess) != 1 {
		t.Fatal("staging leaked into the main store")
	}

	main.MergeFrom(scratch)
	r, _ = main.Get(repr.KindProcess, "p:1")
	if r.EffectiveTime() != 200 || main.Count(repr.KindProcess) != 2 {
		t.Fatal("merge did not apply")
	}
}

type memorySink struct {
	lines [][]byte
}

func (ms *memorySink) Write(lines [][]byte) error {
	ms.lines = lines
	return nil
}

func TestExportRoundTrip(t *testing.T) {
	s := New()
	mustIngest(t, s, [][]byte{
		procLine("p:2", 100, 42),
		procLine("p:1", 100, 1),
		[]byte(`{"id":"f:1","schema":"event_redflag:proc:1.0","time":120,"muid":"m1"}`),
	})

	var ms memorySink
	if err := s.Export(&ms); err != nil {
		t.Fatal(err)
	}
	if len(ms.lines) != 3 {
		t.Fatalf("exported %d lines", len(ms.lines))
	}

	s2 := New()
	mustIngest(t, s2, ms.lines)
	for _, kind := range repr.StoredKinds() {
		if s.Count(kind) != s2.Count(kind) {
			t.Fatalf("kind %v count %d != %d", kind, s.Count(kind), s2.Count(kind))
		}
		for id, r := range s.OfKind(kind) {
			r2, found := s2.Get(kind, id)
			if !found || string(r.Raw) != string(r2.Raw) {
				t.Fatalf("record %s did not round-trip", id)
			}
		}
	}
}

func TestClear(t *testing.T) {
	s := New()
	mustIngest(t, s, [][]byte{procLine("p:1", 100, 1)})
	s.SetLoaded(true)
	s.Clear()
	if s.Count(repr.KindProcess) != 0 || s.Loaded() {
		t.Fatal("clear left state behind")
	}
}
