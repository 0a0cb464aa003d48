package tree

import (
	"errors"

	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// ErrLazyParent is returned when adding a child under a node whose children
// have not been loaded yet.
var ErrLazyParent = errors.New("cannot add to children that are not loaded")

// TransformFunc maps the node at a path to its replacement. Returning the
// same pointer leaves the tree unchanged; returning nil removes the node.
type TransformFunc func(*model.Node) *model.Node

// ChangeNodeAtPath applies fn to the node at path and returns a new root
// slice in which only the ancestors of that node are copied. Every other
// subtree is shared with roots. If the path does not resolve, roots is
// returned together with a *PathNotFoundError.
func ChangeNodeAtPath(roots []*model.Node, path model.Path, fn TransformFunc, key KeyFunc) ([]*model.Node, error) {
	defer metrics.Timer(metrics.Mutate)()

	if len(path) == 0 {
		return roots, notFound("change", path)
	}
	out, changed, err := changeIn(roots, path, 0, nil, fn, orDefault(key))
	if err != nil || !changed {
		return roots, err
	}
	return out, nil
}

func changeIn(siblings []*model.Node, path model.Path, depth int, parentPath model.Path, fn TransformFunc, key KeyFunc) ([]*model.Node, bool, error) {
	idx := indexOfKey(siblings, path[depth], parentPath, key)
	if idx < 0 {
		return siblings, false, notFound("change", path)
	}
	node := siblings[idx]

	var replacement *model.Node
	if depth == len(path)-1 {
		replacement = fn(node)
		if replacement == node {
			return siblings, false, nil
		}
	} else {
		if !node.HasChildren() {
			return siblings, false, notFound("change", path)
		}
		kids, changed, err := changeIn(node.Children, path, depth+1, path[:depth+1], fn, key)
		if err != nil || !changed {
			return siblings, false, err
		}
		replacement = node.Clone()
		replacement.Children = kids
	}
	return replaceAt(siblings, idx, replacement), true, nil
}

// replaceAt copies siblings with position idx replaced, or removed when n is nil.
func replaceAt(siblings []*model.Node, idx int, n *model.Node) []*model.Node {
	if n == nil {
		out := make([]*model.Node, 0, len(siblings)-1)
		out = append(out, siblings[:idx]...)
		return append(out, siblings[idx+1:]...)
	}
	out := make([]*model.Node, len(siblings))
	copy(out, siblings)
	out[idx] = n
	return out
}

// RemoveNodeAtPath removes the node at path together with its subtree.
func RemoveNodeAtPath(roots []*model.Node, path model.Path, key KeyFunc) ([]*model.Node, error) {
	return ChangeNodeAtPath(roots, path, func(*model.Node) *model.Node { return nil }, key)
}

// AddOptions configures AddNodeUnderParent.
type AddOptions struct {
	ExpandParent    bool
	AddAsFirstChild bool
}

// AddNodeUnderParent inserts node as a child of the node at parentPath, or as
// a root when parentPath is empty. It returns the new roots and the path of
// the inserted node.
func AddNodeUnderParent(roots []*model.Node, parentPath model.Path, node *model.Node, key KeyFunc, opts AddOptions) ([]*model.Node, model.Path, error) {
	key = orDefault(key)

	if len(parentPath) == 0 {
		out, idx := insert(roots, node, opts.AddAsFirstChild)
		return out, model.Path{key(KeyArgs{Node: node, Index: idx})}, nil
	}

	var (
		newIndex int
		addErr   error
	)
	out, err := ChangeNodeAtPath(roots, parentPath, func(parent *model.Node) *model.Node {
		if parent.IsLazy() {
			addErr = ErrLazyParent
			return parent
		}
		p := parent.Clone()
		p.Children, newIndex = insert(parent.Children, node, opts.AddAsFirstChild)
		if opts.ExpandParent {
			p.Expanded = true
		}
		return p
	}, key)
	if err != nil {
		return roots, nil, err
	}
	if addErr != nil {
		return roots, nil, addErr
	}
	return out, parentPath.Child(key(KeyArgs{Node: node, Index: newIndex, ParentPath: parentPath})), nil
}

func insert(siblings []*model.Node, n *model.Node, first bool) ([]*model.Node, int) {
	out := make([]*model.Node, 0, len(siblings)+1)
	if first {
		out = append(out, n)
		return append(out, siblings...), 0
	}
	out = append(out, siblings...)
	return append(out, n), len(siblings)
}

// SetExpandedForAll sets the expanded flag on every node that can have
// children (including lazy ones). Leaves are left alone. Only nodes whose
// flag changes, and their ancestors, are copied.
func SetExpandedForAll(roots []*model.Node, expanded bool) []*model.Node {
	defer metrics.Timer(metrics.Mutate)()
	out, _ := setExpanded(roots, expanded)
	return out
}

func setExpanded(nodes []*model.Node, expanded bool) ([]*model.Node, bool) {
	var out []*model.Node
	for i, n := range nodes {
		if n == nil {
			continue
		}
		updated := n
		if n.HasChildren() {
			if kids, changed := setExpanded(n.Children, expanded); changed {
				updated = n.Clone()
				updated.Children = kids
			}
		}
		if n.CanHaveChildren() && updated.Expanded != expanded {
			if updated == n {
				updated = n.Clone()
			}
			updated.Expanded = expanded
		}
		if updated != n {
			if out == nil {
				out = make([]*model.Node, len(nodes))
				copy(out, nodes)
			}
			out[i] = updated
		}
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}

// MapFunc returns the replacement for a node whose children have already
// been mapped. Returning n unchanged keeps sharing.
type MapFunc func(n *model.Node, path model.Path) *model.Node

// Map rebuilds the tree bottom-up, applying fn to every node regardless of
// collapse state. Subtrees where fn changes nothing are shared.
func Map(roots []*model.Node, key KeyFunc, fn MapFunc) []*model.Node {
	out, _ := mapNodes(roots, nil, orDefault(key), fn)
	return out
}

func mapNodes(nodes []*model.Node, parentPath model.Path, key KeyFunc, fn MapFunc) ([]*model.Node, bool) {
	var out []*model.Node
	for i, n := range nodes {
		if n == nil {
			continue
		}
		path := parentPath.Child(key(KeyArgs{Node: n, Index: i, ParentPath: parentPath}))
		updated := n
		if n.HasChildren() {
			if kids, changed := mapNodes(n.Children, path, key, fn); changed {
				updated = n.Clone()
				updated.Children = kids
			}
		}
		updated = fn(updated, path)
		if updated != n {
			if out == nil {
				out = make([]*model.Node, len(nodes))
				copy(out, nodes)
			}
			out[i] = updated
		}
	}
	if out == nil {
		return nodes, false
	}
	return out, true
}

// ExpandToDepth expands every node that can have children and lies fewer
// than depth levels below the roots (depth 1 expands the roots only).
func ExpandToDepth(roots []*model.Node, depth int, key KeyFunc) []*model.Node {
	if depth <= 0 {
		return roots
	}
	return Map(roots, key, func(n *model.Node, path model.Path) *model.Node {
		if len(path) <= depth && n.CanHaveChildren() {
			return n.WithExpanded(true)
		}
		return n
	})
}
