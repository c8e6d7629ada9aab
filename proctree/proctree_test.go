package proctree

import (
	"testing"

	"replaytop/repr"
)

func proc(id string, pid int64, ppuid string) repr.Process {
	return repr.Process{Id: id, Muid: "m1", Pid: pid, Ppuid: ppuid}
}

func TestBuildBasic(t *testing.T) {
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("kthreadd", 2, ""),
		proc("sshd", 800, "init"),
		proc("bash", 900, "sshd"),
		proc("kworker", 30, "kthreadd"),
	}, false)

	if tr.Len() != 5 {
		t.Fatalf("len %d", tr.Len())
	}
	roots := tr.Roots()
	if len(roots) != 2 || roots[0] != "init" || roots[1] != "kthreadd" {
		t.Fatalf("roots %v", roots)
	}
	if got := tr.Children("init"); len(got) != 1 || got[0] != "sshd" {
		t.Fatalf("init children %v", got)
	}
	if !tr.IsLeaf("bash") || tr.Children("bash") != nil {
		t.Fatal("bash should be a leaf with nil children")
	}
	if tr.IsLeaf("sshd") {
		t.Fatal("sshd has a child")
	}
}

func TestRootsForcedEnabled(t *testing.T) {
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("kthreadd", 2, ""),
		proc("sshd", 800, "init"),
	}, true)

	if !tr.Enabled("init") || !tr.Enabled("kthreadd") {
		t.Fatal("roots must be enabled under collapse default")
	}
	if tr.Enabled("sshd") {
		t.Fatal("non-roots start disabled under collapse default")
	}
	tr.SetEnabled("init", false)
	if !tr.Enabled("init") {
		t.Fatal("roots cannot be disabled")
	}
	tr.Toggle("sshd")
	if !tr.Enabled("sshd") {
		t.Fatal("toggle did not enable")
	}
}

func TestDanglingParentExcluded(t *testing.T) {
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("lost", 700, "no-such-id"),
		proc("child-of-lost", 701, "lost"),
	}, false)

	if tr.Has("lost") || tr.Has("child-of-lost") {
		t.Fatal("dangling subtree should be excluded")
	}
	if tr.Len() != 1 {
		t.Fatalf("len %d", tr.Len())
	}
}

func TestCycleBroken(t *testing.T) {
	// a <-> b reference each other; neither is reachable from a root
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("a", 500, "b"),
		proc("b", 501, "a"),
		proc("ok", 600, "init"),
	}, false)

	if tr.Has("a") || tr.Has("b") {
		t.Fatal("cycle members should be dropped")
	}
	if !tr.Has("ok") || tr.Len() != 2 {
		t.Fatalf("len %d", tr.Len())
	}
}

func TestChildOrderStable(t *testing.T) {
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("z", 300, "init"),
		proc("a", 200, "init"),
		proc("m", 200, "init"),
	}, false)
	got := tr.Children("init")
	// pid ascending, id breaks ties
	want := []string{"a", "m", "z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("children %v", got)
		}
	}
}

func TestWalkSkipsDisabledSubtrees(t *testing.T) {
	tr := Build([]repr.Process{
		proc("init", 1, ""),
		proc("sshd", 800, "init"),
		proc("bash", 900, "sshd"),
	}, false)
	tr.SetEnabled("sshd", false)

	var seen []string
	tr.Walk(func(id string, depth int) {
		seen = append(seen, id)
	})
	if len(seen) != 2 || seen[0] != "init" || seen[1] != "sshd" {
		t.Fatalf("walk %v", seen)
	}
}
