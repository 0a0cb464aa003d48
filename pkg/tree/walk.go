package tree

import (
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// Row is one visited node in traversal order. Rows are derived from a single
// tree snapshot and are not valid against any other.
type Row struct {
	Node   *model.Node
	Parent *model.Node // nil for roots
	Path   model.Path
	// TreeIndex is the 0-based position among the rows emitted by the walk.
	TreeIndex int
	// LowerSiblingCounts[d] is the number of siblings after the ancestor at
	// depth d (the node itself at the last depth). len == len(Path).
	LowerSiblingCounts []int
}

// Depth returns the 0-based depth of the row (roots are 0).
func (r Row) Depth() int {
	return len(r.Path) - 1
}

// IsLastSibling reports whether no sibling follows the row's node.
func (r Row) IsLastSibling() bool {
	n := len(r.LowerSiblingCounts)
	return n == 0 || r.LowerSiblingCounts[n-1] == 0
}

// WalkOptions configures Walk.
type WalkOptions struct {
	Key KeyFunc
	// IgnoreCollapsed prunes the subtrees of collapsed nodes. The collapsed
	// node itself is still visited.
	IgnoreCollapsed bool
}

// Walk visits nodes in pre-order. fn returning false stops the walk.
// Nodes with deferred children are visited but never descended.
func Walk(roots []*model.Node, opts WalkOptions, fn func(Row) bool) {
	w := walker{key: orDefault(opts.Key), ignoreCollapsed: opts.IgnoreCollapsed, fn: fn}
	w.siblings(roots, nil, nil, nil)
}

type walker struct {
	key             KeyFunc
	ignoreCollapsed bool
	fn              func(Row) bool
	index           int
}

func (w *walker) siblings(nodes []*model.Node, parent *model.Node, parentPath model.Path, lsc []int) bool {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		path := parentPath.Child(w.key(KeyArgs{Node: n, Index: i, ParentPath: parentPath}))
		counts := make([]int, len(lsc)+1)
		copy(counts, lsc)
		counts[len(lsc)] = len(nodes) - i - 1

		row := Row{Node: n, Parent: parent, Path: path, TreeIndex: w.index, LowerSiblingCounts: counts}
		w.index++
		if !w.fn(row) {
			return false
		}

		if !n.HasChildren() || (w.ignoreCollapsed && !n.Expanded) {
			continue
		}
		if !w.siblings(n.Children, n, path, counts) {
			return false
		}
	}
	return true
}

// Flatten returns the rows of every node reachable under the filter, in
// pre-order, with contiguous tree indices.
func Flatten(roots []*model.Node, key KeyFunc, ignoreCollapsed bool) []Row {
	defer metrics.Timer(metrics.Flatten)()

	rows := make([]Row, 0, len(roots))
	Walk(roots, WalkOptions{Key: key, IgnoreCollapsed: ignoreCollapsed}, func(r Row) bool {
		rows = append(rows, r)
		return true
	})
	return rows
}

// VisibleNodeCount counts the nodes that Flatten(roots, _, true) would emit
// without deriving keys or allocating rows.
func VisibleNodeCount(roots []*model.Node) int {
	count := 0
	for _, n := range roots {
		if n == nil {
			continue
		}
		count++
		if n.Expanded && n.HasChildren() {
			count += VisibleNodeCount(n.Children)
		}
	}
	return count
}

// DescendantCount counts the descendants of node. With ignoreCollapsed only
// the visible ones are counted.
func DescendantCount(node *model.Node, ignoreCollapsed bool) int {
	if !node.HasChildren() || (ignoreCollapsed && !node.Expanded) {
		return 0
	}
	count := 0
	for _, c := range node.Children {
		if c == nil {
			continue
		}
		count += 1 + DescendantCount(c, ignoreCollapsed)
	}
	return count
}

// RowAtIndex returns the visible row at tree index i, walking only as far as
// needed.
func RowAtIndex(roots []*model.Node, key KeyFunc, i int) (Row, bool) {
	var (
		found Row
		ok    bool
	)
	if i < 0 {
		return found, false
	}
	Walk(roots, WalkOptions{Key: key, IgnoreCollapsed: true}, func(r Row) bool {
		if r.TreeIndex == i {
			found, ok = r, true
			return false
		}
		return true
	})
	return found, ok
}

// GetNodeAtPath resolves path against roots by descending only through
// matching keys. Collapse state is ignored.
func GetNodeAtPath(roots []*model.Node, path model.Path, key KeyFunc) (*model.Node, error) {
	if len(path) == 0 {
		return nil, notFound("get", path)
	}
	key = orDefault(key)
	siblings := roots
	var parentPath model.Path
	var node *model.Node
	for depth, seg := range path {
		idx := indexOfKey(siblings, seg, parentPath, key)
		if idx < 0 {
			return nil, notFound("get", path)
		}
		node = siblings[idx]
		if depth == len(path)-1 {
			break
		}
		if !node.HasChildren() {
			return nil, notFound("get", path)
		}
		parentPath = path[:depth+1]
		siblings = node.Children
	}
	return node, nil
}

func indexOfKey(siblings []*model.Node, seg string, parentPath model.Path, key KeyFunc) int {
	for i, n := range siblings {
		if n == nil {
			continue
		}
		if key(KeyArgs{Node: n, Index: i, ParentPath: parentPath}) == seg {
			return i
		}
	}
	return -1
}
