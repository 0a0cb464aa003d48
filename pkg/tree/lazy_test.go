package tree

import (
	"sync"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func TestLoadLazyChildrenExample(t *testing.T) {
	other := testutil.Leaf("other")
	x := &model.Node{ID: "x", Title: "x", Expanded: true, Load: testutil.ImmediateLoader([]*model.Node{testutil.Leaf("x1")})}
	roots := []*model.Node{x, other}

	var ready []*model.Node
	n := LoadLazyChildren(roots, LazyOptions{OnReady: func(r []*model.Node) { ready = r }})

	if n != 1 {
		t.Fatalf("expected 1 handle invoked, got %d", n)
	}
	if ready == nil {
		t.Fatal("expected OnReady to be called")
	}
	if ready[0].IsLazy() {
		t.Error("expected loader to be cleared")
	}
	testutil.AssertTitles(t, ready[0].Children, "x1")
	if ready[1] != other {
		t.Error("unrelated nodes must be shared")
	}
	if !roots[0].IsLazy() {
		t.Error("input tree must not be modified")
	}
}

func TestLoadLazyChildrenSkipsCollapsedUnlessPreload(t *testing.T) {
	var m testutil.ManualLoader
	roots := []*model.Node{{Title: "c", Load: m.Func()}}

	if n := LoadLazyChildren(roots, LazyOptions{}); n != 0 || len(m.Requests) != 0 {
		t.Errorf("collapsed lazy node should not load, invoked %d", n)
	}
	if n := LoadLazyChildren(roots, LazyOptions{PreloadCollapsed: true}); n != 1 {
		t.Errorf("expected preload to invoke 1 handle, got %d", n)
	}
}

func TestLoadLazyChildrenRequestDetails(t *testing.T) {
	var m testutil.ManualLoader
	roots := []*model.Node{
		testutil.Leaf("a"),
		testutil.Branch("b", true, &model.Node{ID: "lazy", Title: "lazy", Expanded: true, Load: m.Func()}, testutil.Leaf("c")),
	}
	LoadLazyChildren(roots, LazyOptions{Key: IDKey})

	if len(m.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(m.Requests))
	}
	req := m.Requests[0]
	if req.Path.String() != "b/lazy" {
		t.Errorf("expected path b/lazy, got %s", req.Path)
	}
	if req.TreeIndex != 2 {
		t.Errorf("expected tree index 2, got %d", req.TreeIndex)
	}
	if len(req.LowerSiblingCounts) != 2 || req.LowerSiblingCounts[0] != 0 || req.LowerSiblingCounts[1] != 1 {
		t.Errorf("expected lower sibling counts [0 1], got %v", req.LowerSiblingCounts)
	}
}

func TestLoadLazyChildrenTreeIndexCountsVisibleRows(t *testing.T) {
	var m testutil.ManualLoader
	hidden := &model.Node{ID: "hidden", Title: "hidden", Expanded: true, Load: m.Func()}
	roots := []*model.Node{
		testutil.Branch("a", false, testutil.Leaf("a1"), testutil.Branch("a2", true, hidden)),
		{ID: "b", Title: "b", Expanded: true, Load: m.Func()},
	}
	LoadLazyChildren(roots, LazyOptions{Key: IDKey, PreloadCollapsed: true})

	if len(m.Requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(m.Requests))
	}
	byPath := map[string]model.LoadRequest{}
	for _, req := range m.Requests {
		byPath[req.Path.String()] = req
	}

	b := byPath["b"]
	if b.TreeIndex != 1 {
		t.Errorf("expected b at visible row 1, got %d", b.TreeIndex)
	}
	if row, ok := RowAtIndex(roots, IDKey, 1); !ok || row.Node != b.Node {
		t.Errorf("expected row 1 to be b, got %+v", row)
	}
	if got := byPath["a/a2/hidden"].TreeIndex; got != NoTreeIndex {
		t.Errorf("expected hidden lazy node to have no row, got %d", got)
	}
}

func TestLazyContinuationAppliesToCurrentTree(t *testing.T) {
	var m testutil.ManualLoader
	lazy := &model.Node{ID: "x", Title: "x", Expanded: true, Load: m.Func()}
	current := []*model.Node{lazy, testutil.Leaf("y")}

	var ready []*model.Node
	LoadLazyChildren(current, LazyOptions{
		Current: func() []*model.Node { return current },
		OnReady: func(r []*model.Node) { ready = r },
	})

	// An unrelated edit lands before the load resolves.
	current, _ = ChangeNodeAtPath(current, model.Path{"1"}, rename("y2"), nil)
	m.Resolve(0, []*model.Node{testutil.Leaf("x1")})

	if ready == nil {
		t.Fatal("expected children to be spliced")
	}
	if ready[1].Title != "y2" {
		t.Errorf("expected splice on top of the latest tree, got sibling %s", ready[1].Title)
	}
}

func TestLazyContinuationStaleTargetIsNoop(t *testing.T) {
	tests := []struct {
		name string
		edit func([]*model.Node) []*model.Node
	}{
		{"node replaced", func(r []*model.Node) []*model.Node {
			out, _ := ChangeNodeAtPath(r, model.Path{"0"}, rename("replaced"), nil)
			return out
		}},
		{"node removed", func(r []*model.Node) []*model.Node {
			out, _ := RemoveNodeAtPath(r, model.Path{"0"}, nil)
			return out
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m testutil.ManualLoader
			current := []*model.Node{{ID: "x", Title: "x", Expanded: true, Load: m.Func()}}

			called := false
			released := 0
			LoadLazyChildren(current, LazyOptions{
				Current: func() []*model.Node { return current },
				OnReady: func([]*model.Node) { called = true },
				Release: func(*model.Node) { released++ },
			})
			current = tt.edit(current)
			m.Resolve(0, []*model.Node{testutil.Leaf("x1")})

			if called {
				t.Error("stale continuation must not produce a tree")
			}
			if released != 1 {
				t.Errorf("expected Release once, got %d", released)
			}
		})
	}
}

func TestLazyContinuationCalledTwiceAppliesOnce(t *testing.T) {
	var m testutil.ManualLoader
	roots := []*model.Node{{Title: "x", Expanded: true, Load: m.Func()}}

	calls := 0
	LoadLazyChildren(roots, LazyOptions{OnReady: func([]*model.Node) { calls++ }})
	m.Resolve(0, nil)
	m.Resolve(0, nil)

	if calls != 1 {
		t.Errorf("expected one application, got %d", calls)
	}
}

func TestLazyClaimSkipsInFlight(t *testing.T) {
	var m testutil.ManualLoader
	roots := []*model.Node{{Title: "x", Expanded: true, Load: m.Func()}}
	claimed := map[*model.Node]bool{}
	claim := func(n *model.Node) bool {
		if claimed[n] {
			return false
		}
		claimed[n] = true
		return true
	}

	LoadLazyChildren(roots, LazyOptions{Claim: claim})
	LoadLazyChildren(roots, LazyOptions{Claim: claim})
	if len(m.Requests) != 1 {
		t.Errorf("expected 1 request while in flight, got %d", len(m.Requests))
	}
}

func TestConcurrentLoadsResolveIndependently(t *testing.T) {
	var mu sync.Mutex
	var current []*model.Node
	for _, id := range []string{"p", "q", "r"} {
		id := id
		current = append(current, &model.Node{ID: id, Title: id, Expanded: true, Load: func(req model.LoadRequest) {
			go req.Done([]*model.Node{testutil.Leaf(id + "1")})
		}})
	}

	var wg sync.WaitGroup
	wg.Add(3)
	LoadLazyChildren(current, LazyOptions{
		Key: IDKey,
		Current: func() []*model.Node {
			return current
		},
		Dispatch: func(apply func()) {
			mu.Lock()
			defer mu.Unlock()
			apply()
		},
		OnReady: func(r []*model.Node) { current = r },
		Release: func(*model.Node) { wg.Done() },
	})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, n := range current {
		if n.IsLazy() || len(n.Children) != 1 {
			t.Errorf("root %d: expected one loaded child, got lazy=%v children=%d", i, n.IsLazy(), len(n.Children))
		}
	}
}
