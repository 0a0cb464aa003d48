// Package testutil provides tree fixture generators and assertions.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// GeneratorConfig controls tree generation.
type GeneratorConfig struct {
	Seed        int64   // Random seed for determinism (0 = use current time)
	IDPrefix    string  // Prefix for node IDs (default: "n")
	ExpandRatio float64 // Fraction of parents generated expanded (0..1)
	LazyRatio   float64 // Fraction of would-be parents generated as lazy nodes
	Subtitles   bool    // Generate subtitles
}

// DefaultConfig returns a config suitable for most tests: everything
// expanded, no lazy nodes.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		IDPrefix:    "n",
		ExpandRatio: 1,
	}
}

// Generator creates trees with various shapes.
type Generator struct {
	cfg    GeneratorConfig
	rng    *rand.Rand
	nextID int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "n"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var words = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf",
	"hotel", "india", "juliet", "kilo", "lima", "mike", "november",
}

func (g *Generator) newNode() *model.Node {
	id := fmt.Sprintf("%s%d", g.cfg.IDPrefix, g.nextID)
	g.nextID++
	n := &model.Node{
		ID:    id,
		Title: fmt.Sprintf("%s %s", words[g.rng.Intn(len(words))], id),
	}
	if g.cfg.Subtitles {
		n.Subtitle = words[g.rng.Intn(len(words))]
	}
	return n
}

func (g *Generator) parent(children []*model.Node) *model.Node {
	n := g.newNode()
	n.Expanded = g.rng.Float64() < g.cfg.ExpandRatio
	if g.cfg.LazyRatio > 0 && g.rng.Float64() < g.cfg.LazyRatio {
		n.Load = ImmediateLoader(children)
		return n
	}
	n.Children = children
	return n
}

// Balanced creates `breadth` roots, each the top of a complete tree where
// every non-leaf has `breadth` children, `depth` levels deep.
func (g *Generator) Balanced(depth, breadth int) []*model.Node {
	if depth < 1 {
		depth = 1
	}
	roots := make([]*model.Node, breadth)
	for i := range roots {
		roots[i] = g.balanced(depth, breadth)
	}
	return roots
}

func (g *Generator) balanced(depth, breadth int) *model.Node {
	if depth == 1 {
		return g.newNode()
	}
	kids := make([]*model.Node, breadth)
	for i := range kids {
		kids[i] = g.balanced(depth-1, breadth)
	}
	return g.parent(kids)
}

// Chain creates a single path of `size` nodes.
func (g *Generator) Chain(size int) []*model.Node {
	if size < 1 {
		return nil
	}
	var n *model.Node
	for i := 0; i < size; i++ {
		if n == nil {
			n = g.newNode()
			continue
		}
		n = g.parent([]*model.Node{n})
	}
	return []*model.Node{n}
}

// Wide creates `size` root leaves.
func (g *Generator) Wide(size int) []*model.Node {
	roots := make([]*model.Node, size)
	for i := range roots {
		roots[i] = g.newNode()
	}
	return roots
}

// Random creates roughly `size` nodes with up to maxChildren children each.
func (g *Generator) Random(size, maxChildren int) []*model.Node {
	if maxChildren < 1 {
		maxChildren = 1
	}
	budget := size
	var build func(depth int) *model.Node
	build = func(depth int) *model.Node {
		budget--
		k := 0
		if budget > 0 && depth < 12 {
			k = g.rng.Intn(maxChildren + 1)
		}
		if k == 0 {
			return g.newNode()
		}
		kids := make([]*model.Node, 0, k)
		for i := 0; i < k && budget > 0; i++ {
			kids = append(kids, build(depth+1))
		}
		return g.parent(kids)
	}
	var roots []*model.Node
	for budget > 0 {
		roots = append(roots, build(0))
	}
	return roots
}

// ImmediateLoader returns a loader that resolves synchronously.
func ImmediateLoader(children []*model.Node) model.LoadFunc {
	return func(req model.LoadRequest) {
		req.Done(children)
	}
}

// ManualLoader records load requests so tests can resolve them later.
type ManualLoader struct {
	Requests []model.LoadRequest
}

// Func returns a LoadFunc that records each call.
func (m *ManualLoader) Func() model.LoadFunc {
	return func(req model.LoadRequest) {
		m.Requests = append(m.Requests, req)
	}
}

// Resolve completes the i-th recorded request.
func (m *ManualLoader) Resolve(i int, children []*model.Node) {
	m.Requests[i].Done(children)
}

// Leaf is shorthand for a leaf node with a title.
func Leaf(title string) *model.Node {
	return &model.Node{ID: title, Title: title}
}

// Branch is shorthand for a parent node.
func Branch(title string, expanded bool, children ...*model.Node) *model.Node {
	if children == nil {
		children = []*model.Node{}
	}
	return &model.Node{ID: title, Title: title, Expanded: expanded, Children: children}
}

// Count returns the number of nodes in the materialized tree.
func Count(roots []*model.Node) int {
	total := 0
	for _, n := range roots {
		if n == nil {
			continue
		}
		total++
		if n.Load == nil {
			total += Count(n.Children)
		}
	}
	return total
}
