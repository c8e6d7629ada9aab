// Process hierarchy built from flat parent references.
//
// The backend delivers processes as flat records carrying a `ppuid` reference to the parent
// process record.  Build turns the current process set into a tree: an arena of nodes plus an
// adjacency index from id to child ids, no owning pointers between nodes.  Roots are the
// conventional ones, pid 1 (init) and pid 2 (kthreadd), and they are always enabled so the tree is
// never collapsed into invisibility.  The tree is cheap to build and is rebuilt wholesale whenever
// the process set or the collapse default changes.
//
// Input is real-world data: parent references may dangle and, with malformed input, may even form
// cycles.  Dangling processes are logged and left out of the tree (they remain in the record
// store), and any process not reachable from a root after adjacency construction is dropped the
// same way, which breaks cycles.

package proctree

import (
	"sort"

	"replaytop/common"
	"replaytop/repr"
)

type node struct {
	proc     repr.Process
	enabled  bool
	root     bool
	children []string
}

type Tree struct {
	nodes map[string]*node
	roots []string
}

// Build constructs the tree for the given process set.  With collapseDefault true, every non-root
// node starts disabled (collapsed away) and must be enabled explicitly.

func Build(procs []repr.Process, collapseDefault bool) *Tree {
	t := &Tree{nodes: make(map[string]*node, len(procs))}
	for _, p := range procs {
		if _, dup := t.nodes[p.Id]; dup {
			common.Log.Infof("Duplicate process id %s in tree build", p.Id)
			continue
		}
		root := p.Pid == 1 || p.Pid == 2
		t.nodes[p.Id] = &node{
			proc:    p,
			enabled: root || !collapseDefault,
			root:    root,
		}
	}

	for id, n := range t.nodes {
		if n.root {
			t.roots = append(t.roots, id)
			continue
		}
		parent := t.nodes[n.proc.Ppuid]
		if parent == nil {
			common.Log.Infof("Process %s refers to unknown parent %q", id, n.proc.Ppuid)
			delete(t.nodes, id)
			continue
		}
		parent.children = append(parent.children, id)
	}

	t.prune()
	sort.Strings(t.roots)
	for _, n := range t.nodes {
		children := n.children
		sort.Slice(children, func(i, j int) bool {
			a, b := t.nodes[children[i]].proc, t.nodes[children[j]].proc
			if a.Pid != b.Pid {
				return a.Pid < b.Pid
			}
			return a.Id < b.Id
		})
	}
	return t
}

// Drop everything not reachable from a root.  Nodes orphaned by deleted parents end up here, and
// so does every member of a parent-reference cycle since a cycle has no path from any root.

func (t *Tree) prune() {
	reachable := make(map[string]bool, len(t.nodes))
	var visit func(id string)
	visit = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, child := range t.nodes[id].children {
			visit(child)
		}
	}
	for _, id := range t.roots {
		visit(id)
	}
	for id, n := range t.nodes {
		if !reachable[id] {
			common.Log.Infof("Process %s unreachable from any root (cycle or dropped parent)", id)
			delete(t.nodes, id)
			continue
		}
		live := n.children[:0]
		for _, child := range n.children {
			if reachable[child] {
				live = append(live, child)
			}
		}
		n.children = live
	}
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Has(id string) bool {
	return t.nodes[id] != nil
}

// Roots returns the root ids in a stable order.

func (t *Tree) Roots() []string {
	return t.roots
}

// Children returns the child ids of a node in a stable order, nil for a leaf or unknown id.

func (t *Tree) Children(id string) []string {
	n := t.nodes[id]
	if n == nil || len(n.children) == 0 {
		return nil
	}
	return n.children
}

func (t *Tree) IsLeaf(id string) bool {
	n := t.nodes[id]
	return n != nil && len(n.children) == 0
}

func (t *Tree) IsRoot(id string) bool {
	n := t.nodes[id]
	return n != nil && n.root
}

func (t *Tree) Enabled(id string) bool {
	n := t.nodes[id]
	return n != nil && n.enabled
}

// SetEnabled expands or collapses a subtree head.  Roots stay enabled no matter what.

func (t *Tree) SetEnabled(id string, enabled bool) {
	n := t.nodes[id]
	if n == nil || n.root {
		return
	}
	n.enabled = enabled
}

func (t *Tree) Toggle(id string) {
	n := t.nodes[id]
	if n == nil || n.root {
		return
	}
	n.enabled = !n.enabled
}

// Walk visits the tree depth-first from the roots, skipping the subtrees of disabled nodes (the
// disabled node itself is visited so it can be rendered collapsed).

func (t *Tree) Walk(visit func(id string, depth int)) {
	var rec func(id string, depth int)
	rec = func(id string, depth int) {
		visit(id, depth)
		if !t.nodes[id].enabled {
			return
		}
		for _, child := range t.nodes[id].children {
			rec(child, depth+1)
		}
	}
	for _, id := range t.roots {
		rec(id, 0)
	}
}
