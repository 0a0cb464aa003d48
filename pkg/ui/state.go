package ui

import (
	"log"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// TreeState is the persisted expand/collapse state of the tree view, saved
// to <state dir>/tree-state.json so it survives restarts.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "sources": {
//	    "/abs/path/notes.yaml": {
//	      "0": true,      // path string -> expanded
//	      "0/2": false
//	    }
//	  }
//	}
//
// Paths are derived with the session's key function, so state recorded
// with one key does not apply under another. Unknown paths are ignored;
// a corrupted or missing file means defaults.
type TreeState struct {
	Version int                        `json:"version"`
	Sources map[string]map[string]bool `json:"sources"`
}

// TreeStateVersion is the current schema version for tree persistence
const TreeStateVersion = 1

const treeStateFileName = "tree-state.json"

// DefaultTreeState returns an empty state.
func DefaultTreeState() *TreeState {
	return &TreeState{
		Version: TreeStateVersion,
		Sources: make(map[string]map[string]bool),
	}
}

// TreeStatePath returns the path of the state file inside stateDir.
func TreeStatePath(stateDir string) string {
	return filepath.Join(stateDir, treeStateFileName)
}

// LoadTreeState reads the state file. Missing or invalid files yield an
// empty state.
func LoadTreeState(stateDir string) *TreeState {
	if stateDir == "" {
		return DefaultTreeState()
	}
	data, err := os.ReadFile(TreeStatePath(stateDir))
	if err != nil {
		return DefaultTreeState()
	}
	var state TreeState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("warning: invalid tree state file, using defaults: %v", err)
		return DefaultTreeState()
	}
	if state.Version != TreeStateVersion {
		debug.Log("tree state version %d != %d, ignoring", state.Version, TreeStateVersion)
		return DefaultTreeState()
	}
	if state.Sources == nil {
		state.Sources = make(map[string]map[string]bool)
	}
	return &state
}

// Save writes the state file, creating stateDir if needed.
func (s *TreeState) Save(stateDir string) error {
	if stateDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(TreeStatePath(stateDir), data, 0o644)
}

// Record replaces the stored state for source with the expanded flags of
// every materialized node that can have children.
func (s *TreeState) Record(source string, roots []*model.Node, key tree.KeyFunc) {
	expanded := make(map[string]bool)
	tree.Walk(roots, tree.WalkOptions{Key: key}, func(r tree.Row) bool {
		if r.Node.CanHaveChildren() {
			expanded[r.Path.String()] = r.Node.Expanded
		}
		return true
	})
	s.Sources[source] = expanded
}

// Apply returns roots with the stored flags for source applied. Subtrees
// without recorded changes are shared with the input.
func (s *TreeState) Apply(source string, roots []*model.Node, key tree.KeyFunc) []*model.Node {
	expanded := s.Sources[source]
	if len(expanded) == 0 {
		return roots
	}
	return tree.Map(roots, key, func(n *model.Node, path model.Path) *model.Node {
		if e, ok := expanded[path.String()]; ok {
			return n.WithExpanded(e)
		}
		return n
	})
}
