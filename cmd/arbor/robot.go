package main

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/analysis"
	"github.com/vanderheijden86/arbor/pkg/metrics"
	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

type robotRow struct {
	Path               string `json:"path"`
	TreeIndex          int    `json:"tree_index"`
	LowerSiblingCounts []int  `json:"lower_sibling_counts"`
	ID                 string `json:"id,omitempty"`
	Title              string `json:"title"`
	Subtitle           string `json:"subtitle,omitempty"`
	Expanded           bool   `json:"expanded"`
	HasChildren        bool   `json:"has_children"`
	Lazy               bool   `json:"lazy,omitempty"`
}

type robotMatch struct {
	Path      string `json:"path"`
	TreeIndex int    `json:"tree_index"` // -1 when an ancestor is collapsed
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
}

type robotRowsOutput struct {
	GeneratedAt string     `json:"generated_at"`
	DataHash    string     `json:"data_hash"`
	Rows        []robotRow `json:"rows"`
}

type robotSearchOutput struct {
	GeneratedAt    string       `json:"generated_at"`
	DataHash       string       `json:"data_hash"`
	Query          string       `json:"query"`
	Focus          int          `json:"focus"`
	FocusTreeIndex int          `json:"focus_tree_index"`
	Matches        []robotMatch `json:"matches"`
	Rows           []robotRow   `json:"rows"`
}

type robotStatsOutput struct {
	GeneratedAt string             `json:"generated_at"`
	DataHash    string             `json:"data_hash"`
	Source      string             `json:"source"`
	Stats       analysis.TreeStats `json:"stats"`
	Metrics     metrics.Snapshot   `json:"metrics"`
}

type searchParams struct {
	Key         tree.KeyFunc
	Method      tree.SearchMethod
	Query       string
	Focus       int
	OnlyMatches bool
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generatedAt() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func toRobotRows(rows []tree.Row) []robotRow {
	out := make([]robotRow, len(rows))
	for i, r := range rows {
		out[i] = robotRow{
			Path:               r.Path.String(),
			TreeIndex:          r.TreeIndex,
			LowerSiblingCounts: r.LowerSiblingCounts,
			ID:                 r.Node.ID,
			Title:              r.Node.Title,
			Subtitle:           r.Node.Subtitle,
			Expanded:           r.Node.Expanded,
			HasChildren:        r.Node.CanHaveChildren(),
			Lazy:               r.Node.IsLazy(),
		}
	}
	return out
}

func writeRobotRows(w io.Writer, roots []*model.Node, key tree.KeyFunc) error {
	return writeJSON(w, robotRowsOutput{
		GeneratedAt: generatedAt(),
		DataHash:    analysis.ComputeDataHash(roots),
		Rows:        toRobotRows(tree.Flatten(roots, key, true)),
	})
}

// runSearch expands every match path, or with OnlyMatches collapses the
// rest of the tree first.
func runSearch(roots []*model.Node, p searchParams) tree.FindResult {
	base := roots
	if p.OnlyMatches {
		base = tree.SetExpandedForAll(base, false)
	}
	return tree.Find(base, tree.FindOptions{
		Key:                   p.Key,
		Query:                 p.Query,
		Method:                p.Method,
		FocusOffset:           p.Focus,
		ExpandAllMatchPaths:   true,
		ExpandFocusMatchPaths: true,
	})
}

func writeRobotSearch(w io.Writer, roots []*model.Node, p searchParams) error {
	res := runSearch(roots, p)

	matches := make([]robotMatch, len(res.Matches))
	for i, m := range res.Matches {
		matches[i] = robotMatch{
			Path:      m.Path.String(),
			TreeIndex: m.TreeIndex,
			ID:        m.Node.ID,
			Title:     m.Node.Title,
		}
	}
	focusIndex := tree.NoTreeIndex
	if p.Focus >= 0 && p.Focus < len(res.Matches) {
		focusIndex = res.Matches[p.Focus].TreeIndex
	}

	return writeJSON(w, robotSearchOutput{
		GeneratedAt:    generatedAt(),
		DataHash:       analysis.ComputeDataHash(roots),
		Query:          p.Query,
		Focus:          p.Focus,
		FocusTreeIndex: focusIndex,
		Matches:        matches,
		Rows:           toRobotRows(tree.Flatten(res.Tree, p.Key, true)),
	})
}

func writeRobotStats(w io.Writer, source string, roots []*model.Node) error {
	return writeJSON(w, robotStatsOutput{
		GeneratedAt: generatedAt(),
		DataHash:    analysis.ComputeDataHash(roots),
		Source:      source,
		Stats:       analysis.Analyze(roots),
		Metrics:     metrics.TakeSnapshot(),
	})
}
