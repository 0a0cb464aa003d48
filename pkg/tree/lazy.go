package tree

import (
	"sync"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// LazyOptions configures LoadLazyChildren.
type LazyOptions struct {
	Key KeyFunc
	// PreloadCollapsed also loads deferred children of collapsed nodes.
	PreloadCollapsed bool
	// Current returns the tree a resolved load should be spliced into. When
	// nil, loads started by one call are applied on top of each other,
	// starting from the tree that was walked.
	Current func() []*model.Node
	// Dispatch runs the splice. Use it to move the work onto the goroutine
	// that owns the tree. Defaults to running inline.
	Dispatch func(func())
	// Claim is consulted before a handle is invoked; returning false skips
	// the node (e.g. because its load is already in flight).
	Claim func(*model.Node) bool
	// Release is called once per claimed node after its load was applied or
	// discarded.
	Release func(*model.Node)
	// Invoke calls a deferred handle. Owners that hold a lock while walking
	// use it to postpone the call until the lock is released. Defaults to
	// calling the handle directly.
	Invoke func(model.LoadFunc, model.LoadRequest)
	// OnReady receives the tree with the children spliced in.
	OnReady func([]*model.Node)
}

// LoadLazyChildren invokes the deferred handle of every lazy node that is
// expanded (or of every lazy node with PreloadCollapsed) and returns how many
// handles were invoked.
//
// Each handle gets a continuation. When called, the continuation replaces
// the node's children in the then-current tree, but only if the node found at
// the recorded path is still the same object. Otherwise the result is
// dropped silently.
func LoadLazyChildren(roots []*model.Node, opts LazyOptions) int {
	key := orDefault(opts.Key)

	current := opts.Current
	var (
		mu     sync.Mutex
		latest = roots
	)
	if current == nil {
		current = func() []*model.Node {
			mu.Lock()
			defer mu.Unlock()
			return latest
		}
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	invoke := opts.Invoke
	if invoke == nil {
		invoke = func(load model.LoadFunc, req model.LoadRequest) { load(req) }
	}

	apply := func(target *model.Node, path model.Path, children []*model.Node) {
		defer metrics.Timer(metrics.LazyResolve)()
		if opts.Release != nil {
			defer opts.Release(target)
		}

		stale := false
		next, err := ChangeNodeAtPath(current(), path, func(old *model.Node) *model.Node {
			if old != target {
				stale = true
				return old
			}
			return old.WithChildren(children)
		}, key)
		if err != nil || stale {
			debug.Log("lazy: dropping children for stale target %s", path)
			return
		}

		if opts.Current == nil {
			mu.Lock()
			latest = next
			mu.Unlock()
		}
		if opts.OnReady != nil {
			opts.OnReady(next)
		}
	}

	// The walk covers the whole tree so collapsed lazy nodes can be
	// preloaded, but requests carry the index among visible rows. open[d]
	// reports whether rows at depth d+1 are visible.
	var (
		invoked int
		visible int
		open    []bool
	)
	Walk(roots, WalkOptions{Key: key}, func(r Row) bool {
		n := r.Node
		depth := len(r.Path)
		shown := depth == 1 || open[depth-2]
		open = append(open[:depth-1], shown && n.Expanded)
		index := NoTreeIndex
		if shown {
			index = visible
			visible++
		}

		if !n.IsLazy() || (!n.Expanded && !opts.PreloadCollapsed) {
			return true
		}
		if opts.Claim != nil && !opts.Claim(n) {
			return true
		}

		var once sync.Once
		path := r.Path
		invoke(n.Load, model.LoadRequest{
			Node:               n,
			Path:               path,
			LowerSiblingCounts: r.LowerSiblingCounts,
			TreeIndex:          index,
			Done: func(children []*model.Node) {
				once.Do(func() {
					dispatch(func() { apply(n, path, children) })
				})
			},
		})
		invoked++
		return true
	})
	return invoked
}
