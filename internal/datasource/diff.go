package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// TreeDiff represents differences between two versions of a tree, matched
// by node key (the node ID when set, else its path)
type TreeDiff struct {
	// Added contains keys present in the new tree only
	Added []string
	// Removed contains keys present in the old tree only
	Removed []string
	// Changed contains nodes whose title or subtitle differ
	Changed []NodeChange
	// CountOld is the number of materialized nodes in the old tree
	CountOld int
	// CountNew is the number of materialized nodes in the new tree
	CountNew int
}

// NodeChange describes a node present in both trees with different labels
type NodeChange struct {
	Key      string `json:"key"`
	TitleOld string `json:"title_old"`
	TitleNew string `json:"title_new"`
}

// IsEmpty returns true if the trees carry the same nodes and labels
func (d TreeDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Summary returns a short description suitable for a status line
func (d TreeDiff) Summary() string {
	if d.IsEmpty() {
		return fmt.Sprintf("no changes (%d nodes)", d.CountNew)
	}
	var parts []string
	if len(d.Added) > 0 {
		parts = append(parts, fmt.Sprintf("+%d", len(d.Added)))
	}
	if len(d.Removed) > 0 {
		parts = append(parts, fmt.Sprintf("-%d", len(d.Removed)))
	}
	if len(d.Changed) > 0 {
		parts = append(parts, fmt.Sprintf("~%d", len(d.Changed)))
	}
	return strings.Join(parts, " ") + fmt.Sprintf(" (%d nodes)", d.CountNew)
}

// DiffTrees compares the materialized nodes of two trees. Collapsed
// subtrees are included; lazy children are not.
func DiffTrees(oldRoots, newRoots []*model.Node) TreeDiff {
	mapOld := index(oldRoots)
	mapNew := index(newRoots)

	diff := TreeDiff{CountOld: len(mapOld), CountNew: len(mapNew)}

	for k := range mapOld {
		if _, ok := mapNew[k]; !ok {
			diff.Removed = append(diff.Removed, k)
		}
	}
	for k, n := range mapNew {
		o, ok := mapOld[k]
		if !ok {
			diff.Added = append(diff.Added, k)
			continue
		}
		if o.Title != n.Title || o.Subtitle != n.Subtitle {
			diff.Changed = append(diff.Changed, NodeChange{Key: k, TitleOld: o.Title, TitleNew: n.Title})
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].Key < diff.Changed[j].Key })
	return diff
}

func index(roots []*model.Node) map[string]*model.Node {
	m := make(map[string]*model.Node)
	tree.Walk(roots, tree.WalkOptions{Key: tree.IDKey}, func(r tree.Row) bool {
		m[r.Path.String()] = r.Node
		return true
	})
	return m
}
