// Package analysis computes shape statistics for arbor trees: node counts,
// depth and branching distributions, and a content hash for provenance.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

// TreeStats summarizes the materialized part of a tree. Depth is 0 for roots.
type TreeStats struct {
	Nodes    int `json:"nodes"`
	Roots    int `json:"roots"`
	Leaves   int `json:"leaves"`
	Parents  int `json:"parents"`
	Lazy     int `json:"lazy"`
	Expanded int `json:"expanded"`
	Visible  int `json:"visible"`

	MaxDepth    int     `json:"max_depth"`
	DepthMean   float64 `json:"depth_mean"`
	DepthStdDev float64 `json:"depth_stddev"`
	DepthMedian float64 `json:"depth_median"`

	// Branching is measured over parents with materialized children.
	BranchingMean   float64 `json:"branching_mean"`
	BranchingStdDev float64 `json:"branching_stddev"`
	MaxBranching    int     `json:"max_branching"`

	// LevelSizes[d] is the number of nodes at depth d.
	LevelSizes []int `json:"level_sizes"`

	DataHash string `json:"data_hash"`
}

// WidestLevel returns the depth holding the most nodes and its size.
func (s TreeStats) WidestLevel() (depth, size int) {
	for d, n := range s.LevelSizes {
		if n > size {
			depth, size = d, n
		}
	}
	return depth, size
}

// Analyze walks every materialized node, collapsed or not.
func Analyze(roots []*model.Node) TreeStats {
	var (
		s         TreeStats
		depths    []float64
		branching []float64
	)

	tree.Walk(roots, tree.WalkOptions{}, func(r tree.Row) bool {
		n := r.Node
		d := r.Depth()
		s.Nodes++
		if d == 0 {
			s.Roots++
		}
		for len(s.LevelSizes) <= d {
			s.LevelSizes = append(s.LevelSizes, 0)
		}
		s.LevelSizes[d]++
		if d > s.MaxDepth {
			s.MaxDepth = d
		}
		depths = append(depths, float64(d))

		switch {
		case n.IsLazy():
			s.Lazy++
		case n.HasChildren():
			s.Parents++
			k := 0
			for _, c := range n.Children {
				if c != nil {
					k++
				}
			}
			branching = append(branching, float64(k))
			if k > s.MaxBranching {
				s.MaxBranching = k
			}
		default:
			s.Leaves++
		}
		if n.Expanded && n.CanHaveChildren() {
			s.Expanded++
		}
		return true
	})

	s.Visible = tree.VisibleNodeCount(roots)
	s.DepthMean, s.DepthStdDev = meanStdDev(depths)
	if len(depths) > 0 {
		sort.Float64s(depths)
		s.DepthMedian = stat.Quantile(0.5, stat.Empirical, depths, nil)
	}
	s.BranchingMean, s.BranchingStdDev = meanStdDev(branching)
	s.DataHash = ComputeDataHash(roots)
	return s
}

func meanStdDev(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	mean, std = stat.MeanStdDev(xs, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// ComputeDataHash returns a stable hash of the materialized tree content:
// structure, IDs, titles, subtitles and expanded flags.
func ComputeDataHash(roots []*model.Node) string {
	if len(roots) == 0 {
		return "empty"
	}
	h := sha256.New()
	tree.Walk(roots, tree.WalkOptions{}, func(r tree.Row) bool {
		n := r.Node
		h.Write([]byte(strconv.Itoa(r.Depth())))
		h.Write([]byte{0})
		h.Write([]byte(n.ID))
		h.Write([]byte{0})
		h.Write([]byte(n.Title))
		h.Write([]byte{0})
		h.Write([]byte(n.Subtitle))
		h.Write([]byte{0})
		if n.Expanded {
			h.Write([]byte{1})
		}
		if n.IsLazy() {
			h.Write([]byte{2})
		}
		h.Write([]byte{0})
		return true
	})
	return hex.EncodeToString(h.Sum(nil))[:16]
}
