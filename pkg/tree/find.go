package tree

import (
	"strings"

	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// NoTreeIndex marks a match that has no visible row in the returned tree.
const NoTreeIndex = -1

// NoFocus disables focus-match expansion when used as FindOptions.FocusOffset.
const NoFocus = -1

// SearchArgs is the input to a SearchMethod.
type SearchArgs struct {
	Node  *model.Node
	Path  model.Path
	Query string
}

// SearchMethod decides whether a node matches.
type SearchMethod func(SearchArgs) bool

// DefaultSearchMethod is a case-sensitive substring match against the title
// or subtitle. An empty query never matches.
func DefaultSearchMethod(a SearchArgs) bool {
	if a.Query == "" || a.Node == nil {
		return false
	}
	return strings.Contains(a.Node.Title, a.Query) || strings.Contains(a.Node.Subtitle, a.Query)
}

// FoldSearchMethod is DefaultSearchMethod ignoring case.
func FoldSearchMethod(a SearchArgs) bool {
	if a.Query == "" || a.Node == nil {
		return false
	}
	q := strings.ToLower(a.Query)
	return strings.Contains(strings.ToLower(a.Node.Title), q) ||
		strings.Contains(strings.ToLower(a.Node.Subtitle), q)
}

// Match is a node accepted by the search method.
type Match struct {
	Node *model.Node // the node as it appears in the returned tree
	Path model.Path
	// TreeIndex is the row index in the returned tree with collapsed
	// subtrees hidden, or NoTreeIndex when an ancestor is collapsed.
	TreeIndex int
}

// Visible reports whether the match has a row in the returned tree.
func (m Match) Visible() bool {
	return m.TreeIndex != NoTreeIndex
}

// FindOptions configures Find.
type FindOptions struct {
	Key    KeyFunc
	Query  string
	Method SearchMethod // DefaultSearchMethod when nil and Query is set
	// FocusOffset selects the focused match (0-based, in match order). Any
	// negative value means no focus.
	FocusOffset int
	// ExpandAllMatchPaths expands every ancestor of every match.
	ExpandAllMatchPaths bool
	// ExpandFocusMatchPaths expands the ancestors of the focused match only.
	ExpandFocusMatchPaths bool
}

// FindResult holds the possibly expanded tree and the ordered matches.
type FindResult struct {
	Tree    []*model.Node
	Matches []Match
}

// Find evaluates the search method against every node, collapsed or not, in
// pre-order. When expansion is requested the returned tree has the relevant
// ancestors expanded; only nodes whose flag changes, and their ancestors,
// are copied. Match tree indices are computed against the returned tree.
func Find(roots []*model.Node, opts FindOptions) FindResult {
	defer metrics.Timer(metrics.Find)()

	method := opts.Method
	if method == nil {
		if opts.Query == "" {
			return FindResult{Tree: roots}
		}
		method = DefaultSearchMethod
	}

	f := finder{
		key:         orDefault(opts.Key),
		query:       opts.Query,
		method:      method,
		focus:       opts.FocusOffset,
		expandAll:   opts.ExpandAllMatchPaths,
		expandFocus: opts.ExpandFocusMatchPaths,
	}
	out, _, _, _ := f.nodes(roots, nil)
	f.assignTreeIndices(out)

	return FindResult{Tree: out, Matches: f.matches}
}

type finder struct {
	key         KeyFunc
	query       string
	method      SearchMethod
	focus       int
	expandAll   bool
	expandFocus bool

	matches []Match
}

func (f *finder) nodes(nodes []*model.Node, parentPath model.Path) (out []*model.Node, changed, hasMatch, hasFocus bool) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		path := parentPath.Child(f.key(KeyArgs{Node: n, Index: i, ParentPath: parentPath}))
		updated, match, focus := f.node(n, path)
		hasMatch = hasMatch || match
		hasFocus = hasFocus || focus
		if updated != n {
			if out == nil {
				out = make([]*model.Node, len(nodes))
				copy(out, nodes)
			}
			out[i] = updated
		}
	}
	if out == nil {
		return nodes, false, hasMatch, hasFocus
	}
	return out, true, hasMatch, hasFocus
}

func (f *finder) node(n *model.Node, path model.Path) (updated *model.Node, hasMatch, hasFocus bool) {
	self := -1
	if f.method(SearchArgs{Node: n, Path: path, Query: f.query}) {
		if f.focus >= 0 && len(f.matches) == f.focus {
			hasFocus = true
		}
		self = len(f.matches)
		f.matches = append(f.matches, Match{Path: path, TreeIndex: NoTreeIndex})
		hasMatch = true
	}

	updated = n
	if n.HasChildren() {
		kids, changed, childMatch, childFocus := f.nodes(n.Children, path)
		if changed {
			updated = n.Clone()
			updated.Children = kids
		}
		expand := (f.expandAll && childMatch) || ((f.expandAll || f.expandFocus) && childFocus)
		if expand && !updated.Expanded {
			if updated == n {
				updated = n.Clone()
			}
			updated.Expanded = true
		}
		hasMatch = hasMatch || childMatch
		hasFocus = hasFocus || childFocus
	}

	if self >= 0 {
		f.matches[self].Node = updated
	}
	return updated, hasMatch, hasFocus
}

// assignTreeIndices flattens the returned tree once and fills in the row
// index of every visible match.
func (f *finder) assignTreeIndices(roots []*model.Node) {
	if len(f.matches) == 0 {
		return
	}
	byPath := make(map[string]int, len(f.matches))
	for i, m := range f.matches {
		byPath[m.Path.Key()] = i
	}
	remaining := len(f.matches)
	Walk(roots, WalkOptions{Key: f.key, IgnoreCollapsed: true}, func(r Row) bool {
		if i, ok := byPath[r.Path.Key()]; ok {
			f.matches[i].TreeIndex = r.TreeIndex
			remaining--
		}
		return remaining > 0
	})
}
