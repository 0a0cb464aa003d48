package tree

import (
	"sync"
	"unsafe"

	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// FlatCache memoizes the most recent Flatten call. It holds a single entry
// keyed on the identity of the root slice, the identity of the key function
// and the collapse filter; any change recomputes and replaces the entry.
//
// Key functions are compared by func value pointer: a top-level function is
// always the same key, while each closure value is its own key even when two
// closures come from the same literal.
//
// The zero value is ready to use and safe for concurrent use.
type FlatCache struct {
	mu    sync.Mutex
	valid bool
	ident cacheIdent
	roots []*model.Node // pins the backing array so its address is not reused
	key   KeyFunc       // pins the closure for the same reason
	rows  []Row
}

type cacheIdent struct {
	data            **model.Node
	n               int
	key             unsafe.Pointer
	ignoreCollapsed bool
}

func identOf(roots []*model.Node, key KeyFunc, ignoreCollapsed bool) cacheIdent {
	return cacheIdent{
		data:            unsafe.SliceData(roots),
		n:               len(roots),
		key:             *(*unsafe.Pointer)(unsafe.Pointer(&key)),
		ignoreCollapsed: ignoreCollapsed,
	}
}

// Rows returns Flatten(roots, key, ignoreCollapsed), reusing the previous
// result when the inputs are identical. The returned slice must not be
// modified.
func (c *FlatCache) Rows(roots []*model.Node, key KeyFunc, ignoreCollapsed bool) []Row {
	key = orDefault(key)
	id := identOf(roots, key, ignoreCollapsed)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.ident == id {
		metrics.FlatCacheStats.Hit()
		return c.rows
	}
	metrics.FlatCacheStats.Miss()

	c.rows = Flatten(roots, key, ignoreCollapsed)
	c.ident = id
	c.roots = roots
	c.key = key
	c.valid = true
	return c.rows
}

// Invalidate drops the cached entry.
func (c *FlatCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.roots = nil
	c.key = nil
	c.rows = nil
	c.mu.Unlock()
}
