package tree

import (
	"errors"
	"strings"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func rename(title string) TransformFunc {
	return func(n *model.Node) *model.Node {
		c := n.Clone()
		c.Title = title
		return c
	}
}

func TestChangeNodeAtPathSharesSiblings(t *testing.T) {
	roots := sampleTree()
	out, err := ChangeNodeAtPath(roots, model.Path{"0", "1", "0"}, rename("changed"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out[0] == roots[0] {
		t.Error("ancestor a should be copied")
	}
	if out[1] != roots[1] {
		t.Error("sibling root b should be shared")
	}
	if out[0].Children[0] != roots[0].Children[0] {
		t.Error("sibling ab should be shared")
	}
	if out[0].Children[1] == roots[0].Children[1] {
		t.Error("ancestor ac should be copied")
	}
	if got := out[0].Children[1].Children[0].Title; got != "changed" {
		t.Errorf("expected changed, got %s", got)
	}
	if roots[0].Children[1].Children[0].Title != "acd" {
		t.Error("input tree must not be modified")
	}
}

func TestChangeNodeAtPathSamePointerIsNoop(t *testing.T) {
	roots := sampleTree()
	out, err := ChangeNodeAtPath(roots, model.Path{"0", "0"}, func(n *model.Node) *model.Node { return n }, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if &out[0] != &roots[0] {
		t.Error("expected the original root slice back")
	}
}

func TestChangeNodeAtPathNotFound(t *testing.T) {
	roots := sampleTree()
	tests := []struct {
		name string
		path model.Path
	}{
		{"empty", model.Path{}},
		{"missing root", model.Path{"9"}},
		{"through leaf", model.Path{"1", "0"}},
		{"missing child", model.Path{"0", "7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ChangeNodeAtPath(roots, tt.path, rename("x"), nil)
			if !errors.Is(err, ErrPathNotFound) {
				t.Fatalf("expected ErrPathNotFound, got %v", err)
			}
			var pnf *PathNotFoundError
			if !errors.As(err, &pnf) || !pnf.Path.Equal(tt.path) {
				t.Errorf("expected PathNotFoundError for %v, got %v", tt.path, err)
			}
			if &out[0] != &roots[0] {
				t.Error("expected unchanged roots on error")
			}
		})
	}
}

func TestChangeNodeAtPathThroughLazyFails(t *testing.T) {
	roots := []*model.Node{{Title: "x", Expanded: true, Load: func(model.LoadRequest) {}}}
	if _, err := ChangeNodeAtPath(roots, model.Path{"0", "0"}, rename("y"), nil); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound descending into a lazy node, got %v", err)
	}
}

func TestRemoveNodeAtPath(t *testing.T) {
	roots := sampleTree()
	out, err := RemoveNodeAtPath(roots, model.Path{"0", "0"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertTitles(t, out[0].Children, "ac")
	testutil.AssertTitles(t, roots[0].Children, "ab", "ac")

	out, err = RemoveNodeAtPath(out, model.Path{"1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertTitles(t, out, "a")
}

func TestAddNodeUnderParent(t *testing.T) {
	roots := sampleTree()

	out, path, err := AddNodeUnderParent(roots, model.Path{"0", "1"}, testutil.Leaf("new"), nil, AddOptions{ExpandParent: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path.String() != "0/1/1" {
		t.Errorf("expected path 0/1/1, got %s", path)
	}
	ac := out[0].Children[1]
	testutil.AssertTitles(t, ac.Children, "acd", "new")
	if !ac.Expanded {
		t.Error("expected parent to be expanded")
	}

	out, path, err = AddNodeUnderParent(out, nil, testutil.Leaf("first"), nil, AddOptions{AddAsFirstChild: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path.String() != "0" {
		t.Errorf("expected root path 0, got %s", path)
	}
	testutil.AssertTitles(t, out, "first", "a", "b")
}

func TestAddNodeUnderLazyParent(t *testing.T) {
	roots := []*model.Node{{Title: "x", Load: func(model.LoadRequest) {}}}
	_, _, err := AddNodeUnderParent(roots, model.Path{"0"}, testutil.Leaf("y"), nil, AddOptions{})
	if !errors.Is(err, ErrLazyParent) {
		t.Errorf("expected ErrLazyParent, got %v", err)
	}
}

func TestSetExpandedForAll(t *testing.T) {
	roots := sampleTree()

	expanded := SetExpandedForAll(roots, true)
	if got := len(Flatten(expanded, nil, true)); got != 5 {
		t.Errorf("expected all 5 rows visible, got %d", got)
	}
	if expanded[1] != roots[1] {
		t.Error("leaf b should be shared")
	}
	if expanded[0].Children[0] != roots[0].Children[0] {
		t.Error("leaf ab should be shared")
	}

	again := SetExpandedForAll(expanded, true)
	if &again[0] != &expanded[0] {
		t.Error("expanding an expanded tree should return it unchanged")
	}

	collapsed := SetExpandedForAll(roots, false)
	if got := len(Flatten(collapsed, nil, true)); got != 2 {
		t.Errorf("expected 2 root rows, got %d", got)
	}
}

func TestMapRewritesBottomUp(t *testing.T) {
	roots := sampleTree()
	var order []string
	out := Map(roots, IDKey, func(n *model.Node, p model.Path) *model.Node {
		order = append(order, p.String())
		if n.Title == "acd" {
			return rename("ACD")(n)
		}
		return n
	})

	want := []string{"a/ab", "a/ac/acd", "a/ac", "a", "b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected visit order %v, got %v", want, order)
		}
	}
	if out[1] != roots[1] || out[0].Children[0] != roots[0].Children[0] {
		t.Error("unchanged subtrees should be shared")
	}
	if out[0].Children[1].Children[0].Title != "ACD" {
		t.Error("expected rewrite to be applied")
	}
}

func TestExpandToDepth(t *testing.T) {
	roots := SetExpandedForAll(sampleTree(), false)

	one := ExpandToDepth(roots, 1, nil)
	if got := strings.Join(rowTitles(Flatten(one, nil, true)), ","); got != "a,ab,ac,b" {
		t.Errorf("expected a,ab,ac,b, got %s", got)
	}
	if one[1] != roots[1] {
		t.Error("leaf root b should be shared")
	}

	two := ExpandToDepth(roots, 2, nil)
	if got := strings.Join(rowTitles(Flatten(two, nil, true)), ","); got != "a,ab,ac,acd,b" {
		t.Errorf("expected a,ab,ac,acd,b, got %s", got)
	}

	if got := ExpandToDepth(roots, 0, nil); &got[0] != &roots[0] {
		t.Error("depth 0 must return the input")
	}
}
