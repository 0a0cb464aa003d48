// Package model defines the node and path types shared by the tree engine,
// the data sources and the terminal view.
package model

import "strings"

// LoadFunc is a deferred child handle. It is invoked with a LoadRequest and
// must eventually call req.Done with the materialized children, from any
// goroutine. Not calling Done leaves the node unloaded.
type LoadFunc func(req LoadRequest)

// LoadRequest describes the node whose children are being materialized.
type LoadRequest struct {
	Node               *Node
	Path               Path
	LowerSiblingCounts []int
	TreeIndex          int // visible row, -1 under a collapsed ancestor
	Done               func(children []*Node)
}

// Node is one element of a tree. Nodes are treated as immutable once they are
// part of a tree handed to the engine; edits produce copies.
//
// The children field has three states:
//   - deferred:     Load != nil (Children is ignored until loaded)
//   - materialized: Load == nil && Children != nil
//   - absent:       Load == nil && Children == nil
type Node struct {
	ID       string   `json:"id,omitempty" yaml:"id,omitempty"`
	Title    string   `json:"title" yaml:"title"`
	Subtitle string   `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Expanded bool     `json:"expanded,omitempty" yaml:"expanded,omitempty"`
	Payload  any      `json:"payload,omitempty" yaml:"payload,omitempty"`
	Children []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
	Load     LoadFunc `json:"-" yaml:"-"`
}

// IsLazy reports whether the node's children are still behind a deferred handle.
func (n *Node) IsLazy() bool {
	return n != nil && n.Load != nil
}

// HasChildren reports whether the node has at least one materialized child.
func (n *Node) HasChildren() bool {
	return n != nil && n.Load == nil && len(n.Children) > 0
}

// CanHaveChildren reports whether the node should show an expand affordance:
// it has materialized children or a pending loader.
func (n *Node) CanHaveChildren() bool {
	return n.IsLazy() || n.HasChildren()
}

// Clone returns a shallow copy. The children slice is shared with the
// original; callers that change it must allocate a new slice.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// WithChildren returns a copy whose children are materialized to the given
// slice and whose loader is cleared.
func (n *Node) WithChildren(children []*Node) *Node {
	c := n.Clone()
	c.Children = children
	c.Load = nil
	return c
}

// WithExpanded returns a copy with the expanded flag set, or n itself if the
// flag already has that value.
func (n *Node) WithExpanded(expanded bool) *Node {
	if n.Expanded == expanded {
		return n
	}
	c := n.Clone()
	c.Expanded = expanded
	return c
}

// Path is the sequence of keys from a root to a node, inclusive of the node's
// own key. Paths are derived from a particular tree snapshot and go stale
// when the shape above the node changes.
type Path []string

// keySep separates segments in Key. It cannot appear in printable keys.
const keySep = "\x1f"

// String renders the path as slash-separated segments.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Key returns an unambiguous string form suitable for map keys.
func (p Path) Key() string {
	return strings.Join(p, keySep)
}

// ParsePath splits a slash-separated path. An empty string is the empty path.
func ParsePath(s string) Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return Path{}
	}
	return Path(strings.Split(s, "/"))
}

// Parent returns the path without its last segment. The parent of a root
// path is the empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the final segment, or "" for the empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Child returns a new path with key appended. The receiver is never aliased.
func (p Path) Child(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor-or-self of p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Depth is the number of segments, so roots have depth 1.
func (p Path) Depth() int {
	return len(p)
}
