package model

import "testing"

func TestNodeChildrenStates(t *testing.T) {
	leaf := &Node{Title: "leaf"}
	if leaf.IsLazy() || leaf.HasChildren() || leaf.CanHaveChildren() {
		t.Errorf("absent children should report no children and no affordance")
	}

	empty := &Node{Title: "empty", Children: []*Node{}}
	if empty.HasChildren() || empty.CanHaveChildren() {
		t.Errorf("empty materialized children should not show an expand affordance")
	}

	parent := &Node{Title: "parent", Children: []*Node{leaf}}
	if !parent.HasChildren() || !parent.CanHaveChildren() {
		t.Errorf("materialized children should be reported")
	}

	lazy := &Node{Title: "lazy", Load: func(LoadRequest) {}}
	if !lazy.IsLazy() || lazy.HasChildren() || !lazy.CanHaveChildren() {
		t.Errorf("deferred node should be lazy, with affordance, without materialized children")
	}
}

func TestWithChildrenClearsLoader(t *testing.T) {
	lazy := &Node{Title: "lazy", Load: func(LoadRequest) {}}
	kids := []*Node{{Title: "a"}}
	got := lazy.WithChildren(kids)

	if got == lazy {
		t.Fatal("expected a copy")
	}
	if got.IsLazy() {
		t.Error("expected loader to be cleared")
	}
	if len(got.Children) != 1 || got.Children[0] != kids[0] {
		t.Errorf("expected materialized children, got %v", got.Children)
	}
	if !lazy.IsLazy() {
		t.Error("original must be untouched")
	}
}

func TestWithExpandedSharesWhenUnchanged(t *testing.T) {
	n := &Node{Title: "n", Expanded: true}
	if n.WithExpanded(true) != n {
		t.Error("expected same pointer when flag is unchanged")
	}
	c := n.WithExpanded(false)
	if c == n || c.Expanded || !n.Expanded {
		t.Error("expected collapsed copy and untouched original")
	}
}

func TestPathHelpers(t *testing.T) {
	p := Path{"0", "2", "1"}

	if p.String() != "0/2/1" {
		t.Errorf("expected 0/2/1, got %q", p.String())
	}
	if !p.Parent().Equal(Path{"0", "2"}) {
		t.Errorf("unexpected parent %v", p.Parent())
	}
	if p.Last() != "1" {
		t.Errorf("expected last 1, got %q", p.Last())
	}
	if !p.HasPrefix(Path{"0"}) || p.HasPrefix(Path{"1"}) {
		t.Error("HasPrefix mismatch")
	}
	if !ParsePath("/0/2/1/").Equal(p) {
		t.Errorf("ParsePath round trip failed")
	}
	if len(ParsePath("")) != 0 {
		t.Error("empty string should parse to empty path")
	}

	// Child must not alias the parent's backing array.
	parent := p.Parent()
	a := parent.Child("x")
	b := parent.Child("y")
	if a.Last() != "x" || b.Last() != "y" {
		t.Errorf("Child aliased backing storage: %v %v", a, b)
	}

	if (Path{"a/b"}).Key() == (Path{"a", "b"}).Key() {
		t.Error("Key must distinguish segments containing slashes")
	}
}
