package tree

import (
	"sync"
	"time"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// VisibilityChange is passed to Options.OnVisibilityToggle.
type VisibilityChange struct {
	Tree     []*model.Node
	Node     *model.Node
	Path     model.Path
	Expanded bool
}

// Options configures a Session.
type Options struct {
	Key          KeyFunc
	SearchMethod SearchMethod
	SearchQuery  string
	// SearchFocusOffset selects the focused match; negative means none.
	SearchFocusOffset int
	// OnlyExpandSearchedNodes collapses the whole tree before a search
	// expands match paths.
	OnlyExpandSearchedNodes bool
	// LoadCollapsedLazyChildren loads deferred children of collapsed nodes.
	LoadCollapsedLazyChildren bool

	// OnChange receives every tree the session adopts on its own: edits,
	// lazy loads and search expansion. Trees passed to SetTree are not echoed.
	OnChange           func([]*model.Node)
	OnSearchFinish     func([]Match)
	OnVisibilityToggle func(VisibilityChange)

	// Dispatch moves resolved lazy loads onto the owner's goroutine. By
	// default they are applied on the goroutine that resolved them.
	Dispatch func(func())
}

// Session owns the current tree snapshot on behalf of a host. It keeps lazy
// children loaded and search results current as the tree changes, and
// exposes the visible rows to a windowed renderer.
//
// All methods are safe for concurrent use. Callbacks run after the internal
// lock is released and may call back into the session.
type Session struct {
	mu   sync.Mutex
	opts Options
	key  KeyFunc

	roots          []*model.Node
	query          string
	focus          int
	matches        []Match
	matchIndex     map[string]int
	focusTreeIndex int

	cache    FlatCache
	inflight map[*model.Node]struct{}
	pending  []func()
}

// NewSession adopts roots, starts loading lazy children and runs the
// initial search with match paths expanded.
func NewSession(roots []*model.Node, opts Options) *Session {
	s := &Session{
		opts:           opts,
		key:            orDefault(opts.Key),
		roots:          roots,
		query:          opts.SearchQuery,
		focus:          opts.SearchFocusOffset,
		focusTreeIndex: NoTreeIndex,
		inflight:       make(map[*model.Node]struct{}),
	}
	s.run(func() {
		s.loadLazy()
		s.search(true, true, false)
	})
	return s
}

// run executes f under the lock and then delivers queued callbacks.
func (s *Session) run(f func()) {
	s.mu.Lock()
	f()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
}

func (s *Session) queue(fn func()) {
	s.pending = append(s.pending, fn)
}

// Key returns the key function paths are derived with.
func (s *Session) Key() KeyFunc {
	return s.key
}

// Tree returns the current snapshot.
func (s *Session) Tree() []*model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roots
}

// SetTree replaces the snapshot with one supplied by the host. Passing the
// current snapshot again is a no-op.
func (s *Session) SetTree(roots []*model.Node) {
	s.run(func() {
		if sameRoots(roots, s.roots) {
			return
		}
		s.roots = roots
		s.focusTreeIndex = NoTreeIndex
		s.loadLazy()
		s.search(false, false, false)
	})
}

// SetSearchQuery runs a new search and expands every match path.
func (s *Session) SetSearchQuery(q string) {
	s.run(func() {
		if q == s.query {
			return
		}
		s.query = q
		s.search(true, true, false)
	})
}

// SetSearchFocusOffset moves the focus to another match and expands only
// its path.
func (s *Session) SetSearchFocusOffset(i int) {
	s.run(func() {
		if i == s.focus {
			return
		}
		s.focus = i
		s.search(true, true, true)
	})
}

// SearchQuery returns the active query.
func (s *Session) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SearchFocusOffset returns the focused match offset (negative for none).
func (s *Session) SearchFocusOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

// Matches returns the matches of the latest search in pre-order.
func (s *Session) Matches() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Match, len(s.matches))
	copy(out, s.matches)
	return out
}

// SearchFocusTreeIndex returns the row of the focused match, if the last
// search was asked to seek and the match is visible.
func (s *Session) SearchFocusTreeIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusTreeIndex, s.focusTreeIndex != NoTreeIndex
}

// IsSearchMatch reports whether the node at path matched the latest search.
func (s *Session) IsSearchMatch(path model.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.matchIndex[path.Key()]
	return ok
}

// IsSearchFocus reports whether the node at path is the focused match.
func (s *Session) IsSearchFocus(path model.Path) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.matchIndex[path.Key()]
	return ok && i == s.focus
}

// Rows returns the visible rows of the current snapshot.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Rows(s.roots, s.key, true)
}

// RowCount returns the number of visible rows.
func (s *Session) RowCount() int {
	return len(s.Rows())
}

// RowAt returns the visible row at index i.
func (s *Session) RowAt(i int) (Row, bool) {
	rows := s.Rows()
	if i < 0 || i >= len(rows) {
		return Row{}, false
	}
	return rows[i], true
}

// ToggleExpanded flips the expanded flag of the node at path.
func (s *Session) ToggleExpanded(path model.Path) error {
	var err error
	s.run(func() {
		var toggled *model.Node
		next, cerr := ChangeNodeAtPath(s.roots, path, func(n *model.Node) *model.Node {
			toggled = n.WithExpanded(!n.Expanded)
			return toggled
		}, s.key)
		if cerr != nil {
			err = cerr
			return
		}
		s.adopt(next)
		if fn := s.opts.OnVisibilityToggle; fn != nil {
			change := VisibilityChange{Tree: next, Node: toggled, Path: path, Expanded: toggled.Expanded}
			s.queue(func() { fn(change) })
		}
		s.refresh()
	})
	return err
}

// SetExpanded sets the expanded flag of the node at path.
func (s *Session) SetExpanded(path model.Path, expanded bool) error {
	return s.ChangeNodeAtPath(path, func(n *model.Node) *model.Node {
		return n.WithExpanded(expanded)
	})
}

// ChangeNodeAtPath replaces the node at path with fn's result.
func (s *Session) ChangeNodeAtPath(path model.Path, fn TransformFunc) error {
	var err error
	s.run(func() {
		next, cerr := ChangeNodeAtPath(s.roots, path, fn, s.key)
		if cerr != nil {
			err = cerr
			return
		}
		s.commit(next)
	})
	return err
}

// RemoveNodeAtPath removes the node at path.
func (s *Session) RemoveNodeAtPath(path model.Path) error {
	return s.ChangeNodeAtPath(path, func(*model.Node) *model.Node { return nil })
}

// AddNodeUnderParent inserts node below parentPath (or as a root) and
// returns its path.
func (s *Session) AddNodeUnderParent(parentPath model.Path, node *model.Node, opts AddOptions) (model.Path, error) {
	var (
		path model.Path
		err  error
	)
	s.run(func() {
		var next []*model.Node
		next, path, err = AddNodeUnderParent(s.roots, parentPath, node, s.key, opts)
		if err != nil {
			return
		}
		s.commit(next)
	})
	return path, err
}

// SetExpandedForAll expands or collapses every node.
func (s *Session) SetExpandedForAll(expanded bool) {
	s.run(func() {
		s.commit(SetExpandedForAll(s.roots, expanded))
	})
}

// commit adopts a tree produced by an edit or a lazy load.
func (s *Session) commit(roots []*model.Node) {
	if sameRoots(roots, s.roots) {
		return
	}
	s.adopt(roots)
	s.refresh()
}

func (s *Session) adopt(roots []*model.Node) {
	s.roots = roots
	if fn := s.opts.OnChange; fn != nil {
		s.queue(func() { fn(roots) })
	}
}

// refresh runs the follow-up work for a changed tree.
func (s *Session) refresh() {
	s.focusTreeIndex = NoTreeIndex
	s.loadLazy()
	s.search(false, false, false)
}

// search recomputes matches. seek records the focused match's row; expand
// adopts a tree with match paths expanded (all of them, or only the focus
// path when single is set). Adopting that tree does not trigger another
// search.
func (s *Session) search(seek, expand, single bool) {
	defer metrics.TimerWithCallback(metrics.Search, func(d time.Duration) {
		debug.LogTiming("session search", d)
	})()
	s.focusTreeIndex = NoTreeIndex

	if s.query == "" && s.opts.SearchMethod == nil {
		s.setMatches(nil)
		return
	}

	base := s.roots
	if expand && s.opts.OnlyExpandSearchedNodes {
		base = SetExpandedForAll(base, false)
	}
	res := Find(base, FindOptions{
		Key:                   s.key,
		Query:                 s.query,
		Method:                s.opts.SearchMethod,
		FocusOffset:           s.focus,
		ExpandAllMatchPaths:   expand && !single,
		ExpandFocusMatchPaths: expand,
	})
	if expand && !sameRoots(res.Tree, s.roots) {
		s.adopt(res.Tree)
	}
	s.setMatches(res.Matches)

	if seek && s.focus >= 0 && s.focus < len(res.Matches) {
		s.focusTreeIndex = res.Matches[s.focus].TreeIndex
	}
}

func (s *Session) setMatches(matches []Match) {
	s.matches = matches
	s.matchIndex = make(map[string]int, len(matches))
	for i, m := range matches {
		s.matchIndex[m.Path.Key()] = i
	}
	if fn := s.opts.OnSearchFinish; fn != nil {
		out := make([]Match, len(matches))
		copy(out, matches)
		s.queue(func() { fn(out) })
	}
}

func (s *Session) loadLazy() {
	userDispatch := s.opts.Dispatch
	if userDispatch == nil {
		userDispatch = func(f func()) { f() }
	}
	LoadLazyChildren(s.roots, LazyOptions{
		Key:              s.key,
		PreloadCollapsed: s.opts.LoadCollapsedLazyChildren,
		// Called from apply, which runs under the lock.
		Current: func() []*model.Node { return s.roots },
		Dispatch: func(apply func()) {
			userDispatch(func() { s.run(apply) })
		},
		Claim: func(n *model.Node) bool {
			if _, busy := s.inflight[n]; busy {
				return false
			}
			s.inflight[n] = struct{}{}
			return true
		},
		Release: func(n *model.Node) {
			delete(s.inflight, n)
		},
		Invoke: func(load model.LoadFunc, req model.LoadRequest) {
			s.queue(func() { load(req) })
		},
		OnReady: s.commit,
	})
}

// sameRoots reports whether a and b are the same root slice.
func sameRoots(a, b []*model.Node) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
