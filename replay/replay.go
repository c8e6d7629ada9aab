// The `replay` verb: load a window of history and step through it.
//
// The outer rendering surface is not part of this program; replay drives the session the way a
// renderer would - initial load, set the playback position, advance it tick by tick - and prints
// a textual digest of each position: machine, snapshot freshness, memory, process counts.  With
// -once it prints a single digest of the loaded window and exits, which is also what scripted
// use wants.

package replay

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"replaytop/command"
	"replaytop/common"
	"replaytop/loader"
	"replaytop/repr"
	"replaytop/session"
	"replaytop/status"
	"replaytop/store"
)

// Snapshots arrive every ~15s; stepping by the interval visits each one once.
const tickSeconds = 15.0

type ReplayCommand struct {
	command.VerboseArgs
	command.SourceArgs
	command.TimeArgs
	Collapse bool
	Once     bool
	Ticks    int
}

func (rc *ReplayCommand) Add(fs *flag.FlagSet) {
	rc.VerboseArgs.Add(fs)
	rc.SourceArgs.Add(fs)
	rc.TimeArgs.Add(fs)
	fs.BoolVar(&rc.Collapse, "collapse", false, "Start with process subtrees collapsed")
	fs.BoolVar(&rc.Once, "once", false, "Print one digest of the loaded window and exit")
	fs.IntVar(&rc.Ticks, "ticks", 0, "Stop after this many playback ticks, 0 for the whole window")
}

func (rc *ReplayCommand) Validate() error {
	return errors.Join(
		rc.VerboseArgs.Validate(),
		rc.SourceArgs.Validate(),
		rc.TimeArgs.Validate(),
	)
}

func (rc *ReplayCommand) Run() error {
	if rc.Verbose {
		common.Log.LowerLevelTo(status.LogLevelInfo)
	}
	src, sourceID, remote, err := rc.MakeSource()
	if err != nil {
		return err
	}
	st := store.New()
	ld := loader.New(st, src, sourceID, rc.Cluster)
	s := session.New(st, ld, remote, rc.Collapse)

	start, end := rc.Window()
	snaps, err := ld.Load(context.Background(), start, end)
	if err != nil {
		return fmt.Errorf("Initial load failed: %w", err)
	}
	s.Absorb(snaps)
	s.RebuildTree()

	lo, hi := s.TimeRange()
	if math.IsNaN(lo) {
		return errors.New("No snapshots in the requested window")
	}
	at := math.Max(start, lo)
	s.SetTime(at)

	if rc.Once {
		rc.digest(s)
		return nil
	}
	for tick := 0; at <= hi; tick++ {
		if rc.Ticks > 0 && tick >= rc.Ticks {
			break
		}
		s.SetTime(at)
		rc.digest(s)
		at += tickSeconds
	}
	return nil
}

func (rc *ReplayCommand) digest(s *session.Session) {
	out := os.Stdout
	fmt.Fprintf(out, "== %s  machine %s", common.FormatEpoch(s.Time()), orUnknown(s.Machine()))
	if failed, reason := s.Failed(); failed {
		fmt.Fprintf(out, "  LOAD FAILED: %s\n", reason)
		return
	}
	if !s.Valid() {
		fmt.Fprintf(out, "  (loading, %d%%)\n", int(s.Progress()*100))
		return
	}
	fmt.Fprintln(out)

	snap, err := s.CurrentSnapshot()
	if err != nil {
		fmt.Fprintln(out, "   no snapshot at this position")
		return
	}
	age := s.Time() - snap.Time
	fresh := ""
	if !s.SnapshotFresh() {
		fresh = "  (stale)"
	}
	fmt.Fprintf(out, "   snapshot %s, %ds old%s, %d processes sampled\n",
		snap.Id, int(age), fresh, len(snap.Processes))
	if mem := s.MemoryInfo(); mem != nil {
		fmt.Fprintf(out, "   memory: total %s, free %s\n",
			formatKB(mem["MemTotal"]), formatKB(mem["MemFree"]))
	}
	if tree := s.Tree(); tree != nil {
		fmt.Fprintf(out, "   process table: %d tracked, %d in tree, roots %v\n",
			s.Count(repr.KindProcess), tree.Len(), tree.Roots())
	}
	if flags := s.Count(repr.KindRedFlag); flags > 0 {
		fmt.Fprintf(out, "   %d red flags in window\n", flags)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func formatKB(kb int64) string {
	switch {
	case kb >= 1024*1024:
		return fmt.Sprintf("%.1fG", float64(kb)/(1024*1024))
	case kb >= 1024:
		return fmt.Sprintf("%.1fM", float64(kb)/1024)
	default:
		return fmt.Sprintf("%dK", kb)
	}
}
