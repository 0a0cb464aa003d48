// Package tree is the tree-manipulation engine: traversal and flattening into
// visible rows, immutable path-addressed mutation with structural sharing,
// lazy child loading, search with ancestor expansion, and a memoized
// flattening cache.
//
// All functions treat their input trees as immutable and return new root
// slices that share every untouched subtree with the input.
package tree

import (
	"strconv"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// KeyArgs is the input to a KeyFunc.
type KeyArgs struct {
	Node       *model.Node
	Index      int        // position among siblings
	ParentPath model.Path // nil for roots
}

// KeyFunc derives the path segment for a node. It must be deterministic for
// a given node and sibling position.
type KeyFunc func(KeyArgs) string

// DefaultKey uses the sibling index as the key.
func DefaultKey(a KeyArgs) string {
	return strconv.Itoa(a.Index)
}

// IDKey uses the node ID, falling back to the sibling index for nodes
// without one. IDs must be unique among siblings for paths to resolve.
func IDKey(a KeyArgs) string {
	if a.Node != nil && a.Node.ID != "" {
		return a.Node.ID
	}
	return strconv.Itoa(a.Index)
}

// KeyFuncByName resolves a configured key mode ("index" or "id").
// Unknown names fall back to DefaultKey.
func KeyFuncByName(name string) KeyFunc {
	switch name {
	case "id":
		return IDKey
	default:
		return DefaultKey
	}
}

func orDefault(key KeyFunc) KeyFunc {
	if key == nil {
		return DefaultKey
	}
	return key
}
